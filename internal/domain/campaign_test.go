package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignStatusOrdering(t *testing.T) {
	assert.True(t, CampaignJobsAdded.CanAdvanceTo(CampaignCompanyEnriched))
	assert.True(t, CampaignJobsAdded.CanAdvanceTo(CampaignReadyForOutreach))
	assert.False(t, CampaignProspectsSelected.CanAdvanceTo(CampaignCompanyEnriched))
	assert.False(t, CampaignCompanyEnriched.CanAdvanceTo(CampaignCompanyEnriched))
	assert.False(t, CampaignStatus("archived").CanAdvanceTo(CampaignReadyForOutreach))

	assert.True(t, CampaignProspectsCollected.AtLeast(CampaignCompanyEnriched))
	assert.True(t, CampaignCompanyEnriched.AtLeast(CampaignCompanyEnriched))
	assert.False(t, CampaignJobsAdded.AtLeast(CampaignCompanyEnriched))
}

func TestPriorityWeight(t *testing.T) {
	assert.Equal(t, 3.0, PriorityHigh.Weight())
	assert.Equal(t, 2.0, PriorityMedium.Weight())
	assert.Equal(t, 1.0, PriorityLow.Weight())
	assert.Equal(t, 1.0, Priority("").Weight())
}
