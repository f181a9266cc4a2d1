package leadflow_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/domain"
)

func TestRunner_CompletesQuestionnaire(t *testing.T) {
	eng := leadflow.New(branchy(t))
	defer closeEngine(t, eng)

	input := strings.Join([]string{
		"Ana", "not-an-email", "", "", // rejected contact
		"Ana", "ana@example.com", "ACME", "",
		"2",   // q1: skip to q3
		"1,3", // q3: x and z
		"",    // q4: optional, skipped
	}, "\n") + "\n"
	var out bytes.Buffer

	r := &leadflow.Runner{Input: strings.NewReader(input), Output: &out}
	res, err := r.Run(context.Background(), eng, "s-1")
	require.NoError(t, err)

	// 5 + 2 + 6 out of 30.
	assert.Equal(t, 43, res.Profile.Score)
	assert.Equal(t, domain.TierWarm, res.Profile.Tier)
	assert.Equal(t, "ACME", res.Profile.Contact.Company)

	text := out.String()
	assert.Contains(t, text, "email is not a valid address")
	assert.Contains(t, text, "## First")
	assert.Contains(t, text, "## Second")
	assert.Contains(t, text, "Choose up to 2")
	assert.Contains(t, text, "# Branchy")
	assert.NotContains(t, text, "Q2", "the branch skips q2")
}

func TestRunner_BackAndInvalidChoice(t *testing.T) {
	eng := leadflow.New(branchy(t))
	defer closeEngine(t, eng)

	input := "Ana\nana@example.com\n\n\n" +
		"9\n" + // out of range
		"1\n" + // q1: stay
		"back\n" +
		"2\n" + // q1: skip
		"3\n" + // q3: z
		"\n" // q4
	var out bytes.Buffer

	r := &leadflow.Runner{Input: strings.NewReader(input), Output: &out, Headless: true}
	res, err := r.Run(context.Background(), eng, "s-1")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "choose a number between 1 and 2")
	_, answered := res.Profile.Responses.Get("q2")
	assert.False(t, answered)
	assert.Len(t, res.Profile.Responses, 2, "q1 and q3 only")
}

func TestRunner_QuitAndResume(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	first := leadflow.New(branchy(t), leadflow.WithStore(store))
	r := &leadflow.Runner{
		Input:    strings.NewReader("Ana\nana@example.com\n\n\n1\nquit\n"),
		Output:   &bytes.Buffer{},
		Headless: true,
	}
	_, err := r.Run(ctx, first, "s-1")
	require.ErrorIs(t, err, leadflow.ErrQuit)
	closeEngine(t, first)

	second := leadflow.New(branchy(t), leadflow.WithStore(store))
	defer closeEngine(t, second)

	var out bytes.Buffer
	r = &leadflow.Runner{Input: strings.NewReader("1\nback\n\n1\n\n"), Output: &out}
	res, err := r.Run(ctx, second, "s-1")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Resuming")
	assert.Equal(t, "ana@example.com", res.Profile.Contact.Email)
}

func TestRunner_EOF(t *testing.T) {
	eng := leadflow.New(branchy(t))
	defer closeEngine(t, eng)

	r := &leadflow.Runner{Input: strings.NewReader("Ana\n"), Output: &bytes.Buffer{}}
	_, err := r.Run(context.Background(), eng, "")
	assert.ErrorIs(t, err, leadflow.ErrQuit)
}

func TestRunner_Renderer(t *testing.T) {
	eng := leadflow.New(branchy(t))
	defer closeEngine(t, eng)

	var out bytes.Buffer
	r := &leadflow.Runner{
		Input:    strings.NewReader("Ana\nana@example.com\n\n\n1\n1\n1\n\n"),
		Output:   &out,
		Headless: true,
		Renderer: func(md string) (string, error) { return strings.ToUpper(md), nil },
	}
	_, err := r.Run(context.Background(), eng, "")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "# BRANCHY")
}
