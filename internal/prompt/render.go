// Package prompt assembles the text sent to the completion model from a template,
// the question, the student's answer and optional example evaluations.
package prompt

import "strings"

const (
	placeholderExamples      = "{examples}"
	placeholderQuestion      = "{question}"
	placeholderStudentAnswer = "{student_answer}"
)

// ExampleSeparator is placed between example evaluations in the rendered prompt.
const ExampleSeparator = "\n\n---\n\n"

// Template is a named instructional prompt with placeholders.
type Template struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Text        string `json:"-"`
}

// Inputs are the values substituted into a template. Any of them may be empty.
type Inputs struct {
	Examples      string
	Question      string
	StudentAnswer string
}

// UsesExamples reports whether the template has a section for example evaluations.
func (t Template) UsesExamples() bool {
	return strings.Contains(t.Text, placeholderExamples)
}

// Render fills the placeholders in one pass. Values are inserted verbatim and are
// never scanned for placeholders themselves.
func (t Template) Render(in Inputs) string {
	r := strings.NewReplacer(
		placeholderExamples, in.Examples,
		placeholderQuestion, in.Question,
		placeholderStudentAnswer, in.StudentAnswer,
	)
	return r.Replace(t.Text)
}

// JoinExamples concatenates example texts in the given order.
func JoinExamples(texts []string) string {
	return strings.Join(texts, ExampleSeparator)
}
