// Package admission applies per-traffic-class request quotas.
package admission

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"
)

type Class string

const (
	ClassAsset         Class = "asset"
	ClassAutomatic     Class = "automatic"
	ClassQuizComplex   Class = "quiz_complex"
	ClassAuthenticated Class = "authenticated"
	ClassDefault       Class = "default"
)

// DefaultMultipliers scale the base quota per class.
var DefaultMultipliers = map[Class]float64{
	ClassAsset:         50,
	ClassAutomatic:     20,
	ClassQuizComplex:   10,
	ClassAuthenticated: 3,
	ClassDefault:       1,
}

const AutomaticRequestHeader = "X-Automatic-Request"

var assetExtensions = map[string]bool{
	".js": true, ".css": true, ".map": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

var assetPrefixes = []string{"/assets/", "/static/", "/public/", "/uploads/"}

var automaticAgents = []string{"bot", "crawler", "spider", "curl/", "wget/", "python-requests", "go-http-client", "postman", "uptime"}

const quizPathPrefix = "/api/quizzes"

type Classifier struct {
	// ComplexElements is the element count at which a quiz write is complex.
	ComplexElements int
}

// NeedsBody reports whether r's class may depend on its body.
func (c Classifier) NeedsBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return strings.HasPrefix(r.URL.Path, quizPathPrefix)
	}
	return false
}

// Classify picks the first matching class in order asset, automatic,
// quiz-complex, authenticated.
func (c Classifier) Classify(r *http.Request, body []byte) Class {
	if isAsset(r.URL.Path) {
		return ClassAsset
	}
	if isAutomatic(r) {
		return ClassAutomatic
	}
	if c.NeedsBody(r) && c.isComplexQuiz(body) {
		return ClassQuizComplex
	}
	if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		return ClassAuthenticated
	}
	return ClassDefault
}

func isAsset(p string) bool {
	for _, prefix := range assetPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return assetExtensions[strings.ToLower(path.Ext(p))]
}

func isAutomatic(r *http.Request) bool {
	if v := r.Header.Get(AutomaticRequestHeader); v != "" && v != "false" && v != "0" {
		return true
	}
	ua := strings.ToLower(r.UserAgent())
	for _, marker := range automaticAgents {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

type quizShape struct {
	Elements []json.RawMessage `json:"elements"`
	Pages    []struct {
		Elements []json.RawMessage `json:"elements"`
	} `json:"pages"`
}

func (c Classifier) isComplexQuiz(body []byte) bool {
	if len(body) == 0 || c.ComplexElements <= 0 {
		return false
	}
	var shape quizShape
	if err := json.Unmarshal(body, &shape); err != nil {
		return false
	}

	count := len(shape.Elements) + len(shape.Pages)
	for _, p := range shape.Pages {
		count += len(p.Elements)
	}
	return count >= c.ComplexElements
}
