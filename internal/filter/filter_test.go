package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegexPreFilterMatchesMonetaryPhrase(t *testing.T) {
	assert.True(t, RegexPreFilter("The applicant shall pay a fee of $50 within 30 days."))
}

func TestRegexPreFilterMatchesConstraintPhrase(t *testing.T) {
	assert.True(t, RegexPreFilter("No person shall not park in a designated fire lane."))
}

func TestRegexPreFilterRejectsUnrelatedText(t *testing.T) {
	assert.False(t, RegexPreFilter("This section defines the term 'vehicle' for purposes of this title."))
}

func TestCrossEncoderScoreHigherForReportingLanguage(t *testing.T) {
	reporting := CrossEncoderScore("The director shall report on compliance within the fiscal year to the council.")
	unrelated := CrossEncoderScore("Bicycles must be equipped with a bell audible from a distance.")
	assert.Greater(t, reporting, unrelated)
}

func TestCrossEncoderPreFilterDefaultThresholdFavorsFalsePositives(t *testing.T) {
	assert.True(t, CrossEncoderPreFilter("the agency must submit an annual report", DefaultCrossEncoderThreshold))
}
