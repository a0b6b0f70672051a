package models

// CompletionPayload is a quiz completion as received from the HTTP API or
// the completion topic.
type CompletionPayload struct {
	QuizID  string                 `json:"quiz_id" binding:"required"`
	Phone   string                 `json:"phone" binding:"required"`
	UserID  string                 `json:"user_id"`
	Email   string                 `json:"email,omitempty"`
	Answers map[string]interface{} `json:"answers,omitempty"`
}

func CompletionFromEnvelope(msg MessageEnvelope) (CompletionPayload, error) {
	p := CompletionPayload{
		QuizID:  msg.StringField("quiz_id"),
		Phone:   msg.StringField("phone"),
		UserID:  msg.StringField("user_id"),
		Email:   msg.StringField("email"),
		Answers: msg.MapField("answers"),
	}
	if p.QuizID == "" {
		return CompletionPayload{}, &ValidationError{Field: "quiz_id", Message: "quiz_id is required"}
	}
	return p, nil
}
