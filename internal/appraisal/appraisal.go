// Package appraisal asks the language model to rate a user message and
// decodes its answer into a typed result, defaulting every missing field.
package appraisal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/felixgeelhaar/mnemo/internal/affect"
	"github.com/felixgeelhaar/mnemo/internal/provider"
)

const (
	NeutralValence = 0.0
	NeutralArousal = 0.25

	MinPleasantness = -5
	MaxPleasantness = 5
)

// SystemPrompt describes the expected JSON object.
const SystemPrompt = `You rate the emotional content of a single user message.
Answer with one JSON object with these fields:
  "valence": number from -1 (very negative) to 1 (very positive)
  "arousal": number from 0 (calm) to 1 (highly activated)
  "pleasantness": integer from -5 to 5, how pleasant the message is to receive
  "material_importance": number from 0 to 1, how much the message matters for the user's life
Do not add any other text.`

// Appraisal is one rated message.
type Appraisal struct {
	Valence            float64 `json:"valence"`
	Arousal            float64 `json:"arousal"`
	Pleasantness       int     `json:"pleasantness"`
	MaterialImportance float64 `json:"material_importance"`
	// Fallback is set when the model could not be used and the neutral
	// appraisal was substituted.
	Fallback bool `json:"fallback,omitempty"`
}

// Neutral is the appraisal used whenever the model's answer is unusable.
func Neutral() Appraisal {
	return Appraisal{Valence: NeutralValence, Arousal: NeutralArousal}
}

// Vector returns the affect coordinates of the appraisal.
func (a Appraisal) Vector() affect.Vector {
	return affect.NewVector(a.Valence, a.Arousal)
}

// wireSchema accepts any object whose known fields are numbers or null.
// Unknown fields are ignored.
const wireSchema = `{
  "type": "object",
  "properties": {
    "valence": {"type": ["number", "null"]},
    "arousal": {"type": ["number", "null"]},
    "pleasantness": {"type": ["number", "null"]},
    "material_importance": {"type": ["number", "null"]},
    "materialImportance": {"type": ["number", "null"]}
  }
}`

var schema = jsonschema.MustCompileString("appraisal.schema.json", wireSchema)

// wire is the decoded model output. Pointers distinguish missing fields.
type wire struct {
	Valence            *float64 `json:"valence"`
	Arousal            *float64 `json:"arousal"`
	Pleasantness       *float64 `json:"pleasantness"`
	MaterialImportance *float64 `json:"material_importance"`
	// Some models answer in camelCase.
	MaterialImportanceAlt *float64 `json:"materialImportance"`
}

// Decode turns a JSON object into an Appraisal. Missing fields take their
// neutral defaults; present ones are clamped into range.
func Decode(raw []byte) (Appraisal, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Appraisal{}, fmt.Errorf("%w: %v", provider.ErrMalformedResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return Appraisal{}, fmt.Errorf("%w: %v", provider.ErrMalformedResponse, err)
	}

	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Appraisal{}, fmt.Errorf("%w: %v", provider.ErrMalformedResponse, err)
	}

	a := Neutral()
	if w.Valence != nil {
		a.Valence = affect.Clamp(*w.Valence, -1, 1)
	}
	if w.Arousal != nil {
		a.Arousal = affect.Clamp(*w.Arousal, 0, 1)
	}
	if w.Pleasantness != nil {
		a.Pleasantness = int(affect.Clamp(math.Round(*w.Pleasantness), MinPleasantness, MaxPleasantness))
	}
	switch {
	case w.MaterialImportance != nil:
		a.MaterialImportance = affect.Clamp(*w.MaterialImportance, 0, 1)
	case w.MaterialImportanceAlt != nil:
		a.MaterialImportance = affect.Clamp(*w.MaterialImportanceAlt, 0, 1)
	}
	return a, nil
}

// Completer is the structured half of the model client.
type Completer interface {
	CompleteStructured(ctx context.Context, system, payload string) (json.RawMessage, error)
}

// Appraiser rates messages through a Completer.
type Appraiser struct {
	model Completer
}

func New(model Completer) *Appraiser {
	return &Appraiser{model: model}
}

// Appraise rates text. Cancellation is returned as is. Any other failure
// yields the neutral appraisal with Fallback set, alongside the cause so the
// caller can report it.
func (a *Appraiser) Appraise(ctx context.Context, text string) (Appraisal, error) {
	raw, err := a.model.CompleteStructured(ctx, SystemPrompt, text)
	if err == nil {
		var out Appraisal
		if out, err = Decode(raw); err == nil {
			return out, nil
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Appraisal{}, err
	}
	fb := Neutral()
	fb.Fallback = true
	return fb, err
}
