/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Round-content shapes consumed by the variants. The generation service
// returns ordered JSON arrays of these; the shape varies per game.

// WordRound is one imposter round: a secret word plus lookalike decoys.
type WordRound struct {
	Word   string   `json:"word"`
	Decoys []string `json:"decoys"`
}

// QuestionRound is one imposterqa round: the majority question, the odd
// question handed to the imposter, and decoys for the final guess.
type QuestionRound struct {
	MainQ  string   `json:"mainQ"`
	OddQ   string   `json:"oddQ"`
	Decoys []string `json:"decoys"`
}

// DefinitionRound is one bluff round: an obscure word and its real definition.
type DefinitionRound struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

// Generator produces round content for the variants that consume external
// text. Implementations may fail; callers always recover with the fixed
// fallback batches below and never surface the failure to players.
type Generator interface {
	WordRounds(ctx context.Context, count int, category string) ([]WordRound, error)
	QuestionRounds(ctx context.Context, count int, category string) ([]QuestionRound, error)
	DefinitionRounds(ctx context.Context, count int, category string) ([]DefinitionRound, error)
}

// httpGenerator talks to the generation service over a single POST endpoint.
type httpGenerator struct {
	url    string
	client *http.Client
}

func newHTTPGenerator(cfg *Config) *httpGenerator {
	return &httpGenerator{
		url: cfg.contentURL,
		client: &http.Client{
			Timeout: cfg.contentTimeout,
		},
	}
}

type contentRequest struct {
	Kind     string `json:"kind"`
	Count    int    `json:"count"`
	Category string `json:"category"`
}

func (g *httpGenerator) fetch(ctx context.Context, kind string, count int, category string, out any) error {
	if g.url == "" {
		return fmt.Errorf("no content endpoint configured")
	}

	body, err := json.Marshal(contentRequest{Kind: kind, Count: count, Category: category})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("content service returned %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *httpGenerator) WordRounds(ctx context.Context, count int, category string) ([]WordRound, error) {
	var rounds []WordRound
	if err := g.fetch(ctx, "words", count, category, &rounds); err != nil {
		return nil, err
	}
	if len(rounds) == 0 {
		return nil, fmt.Errorf("content service returned an empty word batch")
	}
	return rounds, nil
}

func (g *httpGenerator) QuestionRounds(ctx context.Context, count int, category string) ([]QuestionRound, error) {
	var rounds []QuestionRound
	if err := g.fetch(ctx, "questions", count, category, &rounds); err != nil {
		return nil, err
	}
	if len(rounds) == 0 {
		return nil, fmt.Errorf("content service returned an empty question batch")
	}
	return rounds, nil
}

func (g *httpGenerator) DefinitionRounds(ctx context.Context, count int, category string) ([]DefinitionRound, error) {
	var rounds []DefinitionRound
	if err := g.fetch(ctx, "definitions", count, category, &rounds); err != nil {
		return nil, err
	}
	if len(rounds) == 0 {
		return nil, fmt.Errorf("content service returned an empty definition batch")
	}
	return rounds, nil
}

// Deterministic fallback batches, substituted whenever generation fails.

func fallbackWordRounds(count int) []WordRound {
	rounds := make([]WordRound, count)
	for i := range rounds {
		rounds[i] = WordRound{Word: "Apple", Decoys: []string{"Pear", "Banana", "Grape"}}
	}
	return rounds
}

func fallbackQuestionRounds(count int) []QuestionRound {
	rounds := make([]QuestionRound, count)
	for i := range rounds {
		rounds[i] = QuestionRound{
			MainQ:  "How many legs does a dog have?",
			OddQ:   "How many legs does a table have?",
			Decoys: []string{"How many legs does a spider have?", "How many legs does a human have?"},
		}
	}
	return rounds
}

func fallbackDefinitionRounds(count int) []DefinitionRound {
	rounds := make([]DefinitionRound, count)
	for i := range rounds {
		rounds[i] = DefinitionRound{
			Word:       "Aglet",
			Definition: "The plastic or metal tip at the end of a shoelace",
		}
	}
	return rounds
}

const contentFetchRounds = 10

// loadWordRounds fetches a batch with a bounded context, falling back on
// any failure. Runs outside the room lock.
func loadWordRounds(cfg *Config, gen Generator, category string) []WordRound {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.contentTimeout)
	defer cancel()

	rounds, err := gen.WordRounds(ctx, contentFetchRounds, category)
	if err != nil {
		logf(cfg, "CONTENT: Word generation failed (%v), using fallback batch", err)
		return fallbackWordRounds(contentFetchRounds)
	}
	return rounds
}

func loadQuestionRounds(cfg *Config, gen Generator, category string) []QuestionRound {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.contentTimeout)
	defer cancel()

	rounds, err := gen.QuestionRounds(ctx, contentFetchRounds, category)
	if err != nil {
		logf(cfg, "CONTENT: Question generation failed (%v), using fallback batch", err)
		return fallbackQuestionRounds(contentFetchRounds)
	}
	return rounds
}

func loadDefinitionRounds(cfg *Config, gen Generator, category string) []DefinitionRound {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.contentTimeout)
	defer cancel()

	rounds, err := gen.DefinitionRounds(ctx, contentFetchRounds, category)
	if err != nil {
		logf(cfg, "CONTENT: Definition generation failed (%v), using fallback batch", err)
		return fallbackDefinitionRounds(contentFetchRounds)
	}
	return rounds
}

var _ Generator = (*httpGenerator)(nil)
