// Package cel evaluates campaign targeting conditions written in CEL.
package cel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// Input is the activation a condition is evaluated against.
type Input struct {
	QuizID      string
	UserID      string
	Phone       string
	Email       string
	Channel     string
	CompletedAt time.Time
	Answers     map[string]interface{}
}

func (in Input) vars() map[string]interface{} {
	answers := in.Answers
	if answers == nil {
		answers = map[string]interface{}{}
	}
	return map[string]interface{}{
		"quiz_id":      in.QuizID,
		"user_id":      in.UserID,
		"phone":        in.Phone,
		"email":        in.Email,
		"channel":      in.Channel,
		"completed_at": in.CompletedAt,
		"answers":      answers,
	}
}

// Evaluator compiles each distinct expression once and reuses the program.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("quiz_id", cel.StringType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("phone", cel.StringType),
		cel.Variable("email", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("completed_at", cel.TimestampType),
		cel.Variable("answers", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateCondition compiles expression and requires it to return bool.
func (e *Evaluator) ValidateCondition(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("condition must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluateCondition reports whether the condition holds for in. An empty
// expression always holds.
func (e *Evaluator) EvaluateCondition(ctx context.Context, expression string, in Input) (bool, error) {
	if expression == "" {
		return true, nil
	}

	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	result, _, err := program.ContextEval(ctx, in.vars())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	actual, _ := e.programs.LoadOrStore(expression, program)
	return actual.(cel.Program), nil
}
