package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"proposals/models"
)

var allProposalStatuses = []models.ProposalStatus{
	models.StatusDraft,
	models.StatusSubmitted,
	models.StatusApproved,
	models.StatusRejected,
	models.StatusCanceled,
}

func TestAllowedTransitions(t *testing.T) {
	allowed := map[[2]models.ProposalStatus]bool{
		{models.StatusDraft, models.StatusSubmitted}:    true,
		{models.StatusSubmitted, models.StatusApproved}: true,
		{models.StatusSubmitted, models.StatusRejected}: true,
		{models.StatusDraft, models.StatusCanceled}:     true,
		{models.StatusSubmitted, models.StatusCanceled}: true,
	}

	// полная таблица: все остальные пары, включая самопереходы, запрещены
	for _, from := range allProposalStatuses {
		for _, to := range allProposalStatuses {
			want := allowed[[2]models.ProposalStatus{from, to}]
			require.Equal(t, want, models.AllowedTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestProposalStatusFlags(t *testing.T) {
	require.False(t, models.StatusDraft.IsTerminal())
	require.False(t, models.StatusSubmitted.IsTerminal())
	require.True(t, models.StatusApproved.IsTerminal())
	require.True(t, models.StatusRejected.IsTerminal())
	require.True(t, models.StatusCanceled.IsTerminal())

	require.True(t, models.StatusDraft.IsEditable())
	require.False(t, models.StatusSubmitted.IsEditable())
	require.False(t, models.StatusApproved.IsEditable())

	require.True(t, models.StatusDraft.IsCancelable())
	require.True(t, models.StatusSubmitted.IsCancelable())
	require.False(t, models.StatusApproved.IsCancelable())
	require.False(t, models.StatusRejected.IsCancelable())
	require.False(t, models.StatusCanceled.IsCancelable())
}

func TestOrderStatusFlags(t *testing.T) {
	require.True(t, models.OrderPending.IsCancellable())
	require.True(t, models.OrderApproved.IsCancellable())
	require.False(t, models.OrderShipped.IsCancellable())
	require.False(t, models.OrderDelivered.IsCancellable())
	require.False(t, models.OrderCanceled.IsCancellable())
	require.False(t, models.OrderRejected.IsCancellable())

	require.True(t, models.OrderDelivered.IsTerminal())
	require.True(t, models.OrderCanceled.IsTerminal())
	require.True(t, models.OrderRejected.IsTerminal())
	require.False(t, models.OrderPending.IsTerminal())
}

func TestOriginValid(t *testing.T) {
	require.True(t, models.OriginApp.Valid())
	require.True(t, models.OriginSite.Valid())
	require.True(t, models.OriginAPI.Valid())
	require.False(t, models.ProposalOrigin("telegram").Valid())
	require.False(t, models.ProposalOrigin("").Valid())
}
