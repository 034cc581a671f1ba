// Package models defines the static/AI test result union persisted per user.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TestKind discriminates the two result shapes. Static tests are scored
// against fixed scales; AI tests carry generated analysis text.
type TestKind string

const (
	TestKindStatic TestKind = "static"
	TestKindAi     TestKind = "ai"
)

// ScaleScore is one scored dimension of a static test result.
type ScaleScore struct {
	ScaleID string  `json:"scaleId"`
	Value   float64 `json:"value"`
}

// TestResult is a tagged union over Kind: exactly one of Scores (static) or
// Analysis (ai) is meaningful.
type TestResult struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	TestID    string       `json:"testId"`
	Kind      TestKind     `json:"kind"`
	Scores    []ScaleScore `json:"scores,omitempty"`
	Analysis  string       `json:"analysis,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// UnmarshalJSON rejects unknown kinds so a malformed payload never reaches
// the store with an untagged shape.
func (r *TestResult) UnmarshalJSON(data []byte) error {
	type plain TestResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	switch p.Kind {
	case TestKindStatic, TestKindAi:
	default:
		return fmt.Errorf("unknown test kind %q", p.Kind)
	}
	*r = TestResult(p)
	return nil
}
