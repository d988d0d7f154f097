package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestorlead/studio/internal/model"
)

func TestCampaignLifecycle(t *testing.T) {
	c := &model.Campaign{Status: model.CampaignDraft}

	require.NoError(t, c.Launch())
	assert.Equal(t, model.CampaignActive, c.Status)
	require.NotNil(t, c.LaunchedAt)
	assert.True(t, c.IsLaunched())

	require.NoError(t, c.Pause())
	assert.Equal(t, model.CampaignPaused, c.Status)

	require.NoError(t, c.Resume())
	assert.Equal(t, model.CampaignActive, c.Status)

	require.NoError(t, c.Complete())
	assert.Equal(t, model.CampaignCompleted, c.Status)
	require.NotNil(t, c.CompletedAt)

	require.NoError(t, c.Archive())
	assert.Equal(t, model.CampaignArchived, c.Status)
}

func TestCampaignLaunch_FromScheduled(t *testing.T) {
	c := &model.Campaign{Status: model.CampaignScheduled}
	require.NoError(t, c.Launch())
	assert.Equal(t, model.CampaignActive, c.Status)
}

func TestCampaignLaunch_InvalidStates(t *testing.T) {
	for _, status := range []model.CampaignStatus{
		model.CampaignActive,
		model.CampaignPaused,
		model.CampaignCompleted,
		model.CampaignCancelled,
		model.CampaignArchived,
	} {
		t.Run(string(status), func(t *testing.T) {
			c := &model.Campaign{Status: status}
			require.Error(t, c.Launch())
			assert.Equal(t, status, c.Status)
		})
	}
}

func TestCampaignCancel(t *testing.T) {
	t.Run("cancellable states", func(t *testing.T) {
		for _, status := range []model.CampaignStatus{
			model.CampaignDraft,
			model.CampaignScheduled,
			model.CampaignActive,
			model.CampaignPaused,
		} {
			c := &model.Campaign{Status: status}
			require.NoError(t, c.Cancel(), "status %q", status)
			assert.Equal(t, model.CampaignCancelled, c.Status)
			require.NotNil(t, c.CompletedAt)
		}
	})

	t.Run("final states rejected", func(t *testing.T) {
		for _, status := range []model.CampaignStatus{
			model.CampaignCompleted,
			model.CampaignCancelled,
			model.CampaignArchived,
		} {
			c := &model.Campaign{Status: status}
			require.Error(t, c.Cancel(), "status %q", status)
		}
	})
}

func TestCampaignArchive_OnlyFinished(t *testing.T) {
	for _, status := range []model.CampaignStatus{
		model.CampaignDraft,
		model.CampaignActive,
		model.CampaignPaused,
	} {
		t.Run(string(status), func(t *testing.T) {
			c := &model.Campaign{Status: status}
			require.Error(t, c.Archive())
		})
	}
}

func TestCampaignBudget(t *testing.T) {
	budget := 100

	t.Run("spend within budget", func(t *testing.T) {
		c := &model.Campaign{BudgetCredits: &budget}
		assert.True(t, c.CanSpendCredits(100))
		require.NoError(t, c.SpendCredits(60))
		assert.Equal(t, 60, c.SpentCredits)

		rem := c.RemainingCredits()
		require.NotNil(t, rem)
		assert.Equal(t, 40, *rem)

		util := c.BudgetUtilization()
		require.NotNil(t, util)
		assert.InDelta(t, 60.0, *util, 1e-9)
	})

	t.Run("overspend rejected", func(t *testing.T) {
		c := &model.Campaign{BudgetCredits: &budget, SpentCredits: 90}
		assert.False(t, c.CanSpendCredits(11))
		err := c.SpendCredits(11)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insufficient campaign budget")
		assert.Equal(t, 90, c.SpentCredits)
	})

	t.Run("exact budget allowed", func(t *testing.T) {
		c := &model.Campaign{BudgetCredits: &budget, SpentCredits: 90}
		require.NoError(t, c.SpendCredits(10))
		assert.Equal(t, 100, c.SpentCredits)
	})

	t.Run("unbudgeted campaign always spends", func(t *testing.T) {
		c := &model.Campaign{}
		assert.True(t, c.CanSpendCredits(1_000_000))
		require.NoError(t, c.SpendCredits(1_000_000))
		assert.Nil(t, c.RemainingCredits())
		assert.Nil(t, c.BudgetUtilization())
	})
}

func TestCampaignDurationDays(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)

	c := &model.Campaign{StartDate: &start, EndDate: &end}
	days := c.DurationDays()
	require.NotNil(t, days)
	assert.Equal(t, 14, *days)

	assert.Nil(t, (&model.Campaign{StartDate: &start}).DurationDays())
}
