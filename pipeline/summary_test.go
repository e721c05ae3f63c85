package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(words, " ")
}

func TestEnforceWordLimit(t *testing.T) {
	s := NewSummary(&fakeCompleter{})

	got := s.enforceWordLimit(nWords(80), 55)
	assert.Equal(t, 55, countWords(got))

	short := nWords(30)
	assert.Equal(t, short, s.enforceWordLimit(short, 55), "short text passes through unchanged")
}

func TestExtractFindings(t *testing.T) {
	text := "Here are the findings:\n• first\n- second\n* third\n1. fourth\nnot a bullet\n\n2. fifth"
	findings := extractFindings(text)
	assert.Equal(t, []string{"• first", "- second", "* third", "1. fourth", "2. fifth"}, findings)
}

func TestEnforceFindingsLimitTruncates(t *testing.T) {
	var lines []string
	for i := 1; i <= 7; i++ {
		lines = append(lines, fmt.Sprintf("• finding %d", i))
	}

	got := NewSummary(&fakeCompleter{}).enforceFindingsLimit(strings.Join(lines, "\n"), 5)
	assert.Equal(t, strings.Join(lines[:5], "\n"), got)
}

func TestEnforceFindingsLimitPadsWhenEmpty(t *testing.T) {
	got := NewSummary(&fakeCompleter{}).enforceFindingsLimit("the model rambled without any bullets", 5)

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 5)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "•"))
	}
}

func TestGenerateIsolatesFieldFailures(t *testing.T) {
	comp := &fakeCompleter{fn: func(question, _ string) (string, error) {
		switch {
		case strings.Contains(question, "key findings"):
			return "", errors.New("model overloaded")
		case strings.Contains(question, "50-60 words"):
			return nWords(55), nil
		case strings.Contains(question, "introduction"):
			return "This document explains things.", nil
		default:
			return "1. Section one\n2. Section two", nil
		}
	}}

	s := NewSummary(comp)
	res := s.Generate(context.Background(), nWords(400), "report")

	assert.Equal(t, 55, countWords(res.Summary))
	assert.Empty(t, res.KeyFindings, "failed field stays empty")
	assert.Equal(t, "This document explains things.", res.Introduction)
	assert.Contains(t, res.TableOfContents, "Section one")
}

func TestAbstractRetriesShortOutput(t *testing.T) {
	comp := &fakeCompleter{fn: func(question, _ string) (string, error) {
		if strings.Contains(question, "EXACTLY 55 words") {
			return nWords(70), nil
		}
		return "way too short", nil
	}}

	s := NewSummary(comp)
	got := s.abstract(context.Background(), nWords(400), nWords(100), "report")

	assert.Equal(t, 55, countWords(got), "retry output is trimmed to the target")
	assert.Equal(t, 2, comp.callCount())
}

func TestAbstractTruncatesLongOutput(t *testing.T) {
	comp := &fakeCompleter{reply: nWords(90)}

	s := NewSummary(comp)
	got := s.abstract(context.Background(), nWords(400), nWords(100), "report")

	assert.Equal(t, 60, countWords(got))
	assert.Equal(t, 1, comp.callCount(), "no retry for overlong output")
}

func TestKeyFindingsRetriesWrongCount(t *testing.T) {
	comp := &fakeCompleter{fn: func(question, _ string) (string, error) {
		if strings.Contains(question, "URGENT") {
			return "• one\n• two\n• three\n• four\n• five", nil
		}
		return "• one\n• two\n• three", nil
	}}

	s := NewSummary(comp)
	got := s.keyFindings(context.Background(), nWords(400), nWords(100), "report")

	assert.Len(t, extractFindings(got), 5)
	assert.Equal(t, 2, comp.callCount())
}

func TestQuickDoesNotPadQuestions(t *testing.T) {
	comp := &fakeCompleter{fn: func(question, _ string) (string, error) {
		if strings.Contains(question, "questions") {
			return "• What is this about?\n• Who wrote it?", nil
		}
		return "A brief summary.", nil
	}}

	s := NewSummary(comp)
	res := s.Quick(context.Background(), []string{"chunk one", "chunk two"}, "report")

	assert.Equal(t, "A brief summary.", res.Summary)
	assert.Len(t, extractFindings(res.CommonQuestions), 2, "missing questions are never invented")
}
