package activity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository/memory"
)

func TestListRedactsOtherAdmins(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore().Activity())

	alice := model.Actor{ID: uuid.New(), Name: "Alice", Role: model.RoleModerator, IPAddress: "10.0.0.1"}
	bob := model.Actor{ID: uuid.New(), Name: "Bob", Role: model.RoleAdmin, IPAddress: "10.0.0.2"}

	for _, actor := range []model.Actor{alice, bob} {
		require.NoError(t, svc.Log(ctx, Entry{
			Actor:      actor,
			Action:     model.ActionSuspendDoctor,
			EntityType: model.EntityDoctor,
			EntityID:   uuid.New(),
			Metadata:   map[string]interface{}{"doctorId": "x"},
		}))
	}

	logs, total, err := svc.List(ctx, &model.ActivityFilter{}, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	byName := map[string]*model.ActivityLog{}
	for _, l := range logs {
		byName[l.ActorName] = l
	}
	require.Contains(t, byName, "Alice")
	require.Contains(t, byName, anonymousName)

	own := byName["Alice"]
	assert.False(t, own.Anonymized)
	assert.Equal(t, "10.0.0.1", own.IPAddress)

	other := byName[anonymousName]
	assert.True(t, other.Anonymized)
	assert.Equal(t, uuid.Nil, other.ActorID)
	assert.Empty(t, other.IPAddress)
	assert.Nil(t, other.Metadata)
}

func TestListSuperAdminSeesEverything(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore().Activity())

	bob := model.Actor{ID: uuid.New(), Name: "Bob", Role: model.RoleAdmin}
	require.NoError(t, svc.Log(ctx, Entry{Actor: bob, Action: model.ActionLiftSuspension}))

	root := model.Actor{ID: uuid.New(), Name: "Root", Role: model.RoleSuperAdmin}
	logs, _, err := svc.List(ctx, &model.ActivityFilter{}, root)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Bob", logs[0].ActorName)
	assert.False(t, logs[0].Anonymized)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewStore().Activity())

	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	require.NoError(t, svc.Log(ctx, Entry{Action: model.ActionSuspendDoctor}))
	svc.now = time.Now
	require.NoError(t, svc.Log(ctx, Entry{Action: model.ActionSuspendDoctor}))

	removed, err := svc.Cleanup(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}
