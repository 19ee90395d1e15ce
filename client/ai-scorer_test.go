package client

import (
	"strings"
	"testing"

	"ftc/repository"

	"github.com/stretchr/testify/assert"
)

func TestParseScoreSet(t *testing.T) {
	raw := `{"scores":[{"criteria_id":1,"score":7.5,"reasoning":"solid technical answer"}],"comments":"promising","recommendation":"ACCEPT","confidence":4}`

	scoreSet, err := parseScoreSet(raw)
	assert.NoError(t, err)
	assert.Len(t, scoreSet.Scores, 1)
	assert.Equal(t, 1, scoreSet.Scores[0].CriteriaId)
	assert.Equal(t, 7.5, scoreSet.Scores[0].Score)
	assert.Equal(t, "ACCEPT", scoreSet.Recommendation)
	assert.Equal(t, 4, scoreSet.Confidence)
}

func TestParseScoreSetStripsFencing(t *testing.T) {
	raw := "```json\n{\"scores\":[],\"comments\":\"thin application\",\"recommendation\":\"NEEDS_MORE_INFO\",\"confidence\":2}\n```"

	scoreSet, err := parseScoreSet(raw)
	assert.NoError(t, err)
	assert.Equal(t, "NEEDS_MORE_INFO", scoreSet.Recommendation)
	assert.Empty(t, scoreSet.Scores)
}

func TestParseScoreSetRejectsGarbage(t *testing.T) {
	_, err := parseScoreSet("I think this application is great!")
	assert.Error(t, err)
}

func TestBuildPromptOrdersQuestionsAndListsCriteria(t *testing.T) {
	description := "Depth of technical background"
	criteria := []*repository.EvaluationCriteria{
		{Id: 1, Name: "Technical Merit", Weight: 2, Description: &description},
		{Id: 2, Name: "Community Fit", Weight: 1},
	}
	application := &repository.Application{
		Responses: []*repository.ApplicationResponse{
			{Answer: "first answer", Question: &repository.ApplicationQuestion{Prompt: "Why apply?", SortOrder: 1}},
			{Answer: "second answer", Question: &repository.ApplicationQuestion{Prompt: "What will you build?", SortOrder: 2}},
		},
	}

	system, user := buildPrompt(application, criteria, repository.StageScreening)
	assert.Contains(t, system, "JSON")
	assert.Contains(t, user, "SCREENING")
	assert.Contains(t, user, "id=1 Technical Merit (weight 2.00): Depth of technical background")
	assert.Contains(t, user, "id=2 Community Fit (weight 1.00)")
	assert.Less(t, strings.Index(user, "Why apply?"), strings.Index(user, "What will you build?"))
}
