package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrypster/recall/pkg/types"
)

func TestExtractFacts_ColonLine(t *testing.T) {
	got := ExtractFacts("name: Alice")
	assert.Equal(t, []types.Fact{{Key: "name", Value: "Alice"}}, got)
}

func TestExtractFacts_FullwidthColon(t *testing.T) {
	got := ExtractFacts("姓名：李雷")
	assert.Equal(t, []types.Fact{{Key: "姓名", Value: "李雷"}}, got)
}

func TestExtractFacts_LabelSentences(t *testing.T) {
	got := ExtractFacts("My name is Alice\nI live in Berlin")
	if len(got) != 2 {
		t.Fatalf("expected 2 facts, got %v", got)
	}
	assert.Equal(t, types.Fact{Key: "name", Value: "Alice"}, got[0])
	assert.Equal(t, types.Fact{Key: "location", Value: "Berlin"}, got[1])
}

func TestExtractFacts_Favorite(t *testing.T) {
	got := ExtractFacts("My favorite cuisine is Chinese food")
	assert.Equal(t, []types.Fact{{Key: "favorite cuisine", Value: "Chinese food"}}, got)
}

func TestExtractFacts_Employer(t *testing.T) {
	got := ExtractFacts("I work at Initech")
	assert.Equal(t, []types.Fact{{Key: "employer", Value: "Initech"}}, got)
}

func TestExtractFacts_DuplicateKeyKeepsLast(t *testing.T) {
	got := ExtractFacts("mood: happy\nmood: tired")
	assert.Equal(t, []types.Fact{{Key: "mood", Value: "tired"}}, got)
}

func TestExtractFacts_ValueMayContainColon(t *testing.T) {
	got := ExtractFacts("meeting: standup at 9:30")
	assert.Equal(t, []types.Fact{{Key: "meeting", Value: "standup at 9:30"}}, got)
}

func TestExtractFacts_LongLeftSideIsNotALabel(t *testing.T) {
	got := ExtractFacts("the thing everyone keeps asking me about at work lately: unclear")
	assert.Empty(t, got)
}

func TestExtractFacts_PlainProse(t *testing.T) {
	got := ExtractFacts("We talked about the weather for a while.")
	assert.Empty(t, got)
}

func TestDetectConflicts_DifferingValue(t *testing.T) {
	existing := []types.Fact{{Key: "姓名", Value: "李雷"}}
	incoming := []types.Fact{{Key: "姓名", Value: "韩梅梅"}}

	conflicts := DetectConflicts(existing, incoming)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %v", conflicts)
	}
	assert.Equal(t, "姓名", conflicts[0].Key)
	assert.Equal(t, "李雷", conflicts[0].Prev)
	assert.Equal(t, "韩梅梅", conflicts[0].Next)
}

func TestDetectConflicts_CaseAndSpaceInsensitive(t *testing.T) {
	existing := []types.Fact{{Key: "Name", Value: "Alice"}}
	incoming := []types.Fact{{Key: "name", Value: " alice "}}
	assert.Empty(t, DetectConflicts(existing, incoming))
}

func TestDetectConflicts_NewKeyIsNotAConflict(t *testing.T) {
	existing := []types.Fact{{Key: "name", Value: "Alice"}}
	incoming := []types.Fact{{Key: "location", Value: "Berlin"}}
	assert.Empty(t, DetectConflicts(existing, incoming))
}

func TestDetectConflicts_OneConflictPerKey(t *testing.T) {
	existing := []types.Fact{{Key: "name", Value: "Alice"}}
	incoming := []types.Fact{
		{Key: "name", Value: "Bob"},
		{Key: "NAME", Value: "Carol"},
	}
	conflicts := DetectConflicts(existing, incoming)
	assert.Len(t, conflicts, 1)
}

func TestDetectConflicts_EmptySides(t *testing.T) {
	assert.Empty(t, DetectConflicts(nil, []types.Fact{{Key: "a", Value: "b"}}))
	assert.Empty(t, DetectConflicts([]types.Fact{{Key: "a", Value: "b"}}, nil))
}
