package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/repository"
)

func TestActivityServiceRecordAndList(t *testing.T) {
	repo := repository.NewActivityLogRepository(setupServiceDB(t))
	svc := NewActivityService(repo, testValidator(), testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, ActivityEntry{ActivityID: "act-1", ActorID: "u-1", Action: "Chat.Created"}))
	require.NoError(t, svc.Record(ctx, ActivityEntry{
		ActivityID: "act-1",
		Action:     "chat.joined",
		Metadata:   map[string]interface{}{"email": "ana@example.com", "chat_id": 1},
	}))
	require.Error(t, svc.Record(ctx, ActivityEntry{ActivityID: "act-1"}))
	require.Error(t, svc.Record(ctx, ActivityEntry{Action: "chat.joined"}))

	page, err := svc.List(ctx, "act-1", dto.ActivityLogListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, int64(2), page.Pagination.TotalItems)
	require.Equal(t, 1, page.Pagination.TotalPages)

	latest := page.Items[0]
	require.Equal(t, "chat.joined", latest.Action)
	require.Equal(t, "system", latest.ActorID)
	require.Equal(t, "***", latest.Metadata["email"])
	require.Equal(t, "chat.created", page.Items[1].Action)

	filtered, err := svc.List(ctx, "act-1", dto.ActivityLogListRequest{Action: "chat.created"})
	require.NoError(t, err)
	require.Len(t, filtered.Items, 1)

	_, err = svc.List(ctx, "act-1", dto.ActivityLogListRequest{Action: "deleted"})
	require.Error(t, err)
}
