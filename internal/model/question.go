package model

import (
	"fmt"
	"strings"
)

// Choice is one of the four labelled answer options.
type Choice string

const (
	ChoiceA Choice = "A"
	ChoiceB Choice = "B"
	ChoiceC Choice = "C"
	ChoiceD Choice = "D"
)

// Choices lists the answer labels in display order.
var Choices = []Choice{ChoiceA, ChoiceB, ChoiceC, ChoiceD}

// Valid reports whether c is one of A–D.
func (c Choice) Valid() bool {
	switch c {
	case ChoiceA, ChoiceB, ChoiceC, ChoiceD:
		return true
	}
	return false
}

// ParseChoice accepts a label in either case ("b" → ChoiceB).
func ParseChoice(s string) (Choice, error) {
	c := Choice(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid choice %q", s)
	}
	return c, nil
}

// Question is a single multiple-choice question as delivered to a student.
// It never carries the correct option.
type Question struct {
	ID           string            `json:"id" yaml:"id" validate:"required,max=64"`
	QuestionText string            `json:"question_text" yaml:"text" validate:"required,max=2000"`
	Options      map[Choice]string `json:"options" yaml:"options" validate:"len=4,dive,keys,oneof=A B C D,endkeys,required"`
	Points       int               `json:"score_value" yaml:"points" validate:"min=0"`
	OrderNum     int               `json:"order_num" yaml:"order"`
}

// Option returns the text for choice c.
func (q Question) Option(c Choice) string {
	return q.Options[c]
}
