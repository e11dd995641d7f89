package prompt

import (
	"fmt"
	"slices"

	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
)

// DefaultTemplate is used when a request does not name a template.
const DefaultTemplate = "peel-examples"

// PlainTemplate replaces DefaultTemplate when examples are turned off.
const PlainTemplate = "peel"

const peelIntro = `You are an experienced IGCSE examiner. Your task is to evaluate a middle school student’s written response using the PEEL structure: Point, Evidence, Explanation, Link.
`

const peelExamplesSection = `
You will be given several EXAMPLE EVALUATIONS. Each example contains:
- The question
- The student’s answer
- The teacher’s feedback
- The score out of 15

Study these examples carefully and imitate their style, tone, level of strictness, and scoring when evaluating the new answer.

EXAMPLE_EVALUATIONS:
{examples}
`

const peelRubric = `
Evaluate the new answer against these criteria:

1. POINT — Is the argument clearly stated and directly answering the question?
2. EVIDENCE — Is there relevant, accurate, and specific supporting evidence?
3. EXPLANATION — Does the student explain how the evidence supports the point, showing understanding and analysis?
4. LINK — Does the student connect back to the question or provide a clear transition?

Expectation from the Student's Answer:
There should be one introductory paragraph followed by three body paragraphs and one conclusion paragraph.
The introductory paragraph should first begin with the title of the story,
then the name of the author,
then a short one or two lines about the content of the extract or the content of the scene,
followed by a thesis statement.
The thesis statement should provide a clear answer to the question and outline all the points which will be highlighted in the following essay.
The body paragraphs should follow the PEEL format, but language aspects also require to be mentioned.
In language aspects, the student should identify a literary device or other forms of language used by the author to bring out what they're trying to say.
They can either use the PETAL (Point, Evidence, Technique, Analysis, Link) format for this or provide a separate body paragraph for the same.
If they are providing a separate body paragraph, they will have two paragraphs which explain points and one paragraph which highlights the literary devices.
Then in the conclusion, they must summarize all the points and restate the thesis statement.
Throughout the essay, they should not narrate the story; they need to be specific to the question.
However, evidence must be explained and some content and background may be provided while doing the same.

Evaluation Criteria:
- 10 marks for the content of the answer
- 5 marks for quality of writing (grammar, vocabulary, clarity)
- Total: 15 marks

Now evaluate the NEW answer.

Provide your feedback in paragraph format using the structure below:
- Start with giving a score out of 15 based on overall effectiveness. Output this in bold (Markdown) and add a newline after this line.
- Then add a separate paragraph for each of the following, separated by a blank line:
  - A judgment of how well the PEEL structure is followed.
  - Comments on the strengths in Point, Evidence, Explanation, and Link.
  - 2–3 clear suggestions for improvement (EBI: Even Better If…).
  - A brief summary sentence encouraging improvement.

Tone: Constructive, supportive, and academically appropriate for IGCSE level.
Do not use bullet lists in your feedback paragraphs. Do not provide separate numeric scores for each criterion; only provide one overall score out of 15 at the start.

QUESTION:
{question}

STUDENT_ANSWER:
{student_answer}
`

const generalText = `You are an expert English teacher. Your job is to evaluate the student's answer and give helpful feedback.

**Task:**
- Read the question and the student's answer.
- Decide if the answer is correct, partially correct, or incorrect.
- Give clear feedback on grammar, clarity, vocabulary, and missing information.
- Provide a suggested improved answer (only if needed).

**Output Format:**
Evaluation:
- Correctness: (Correct / Partially correct / Incorrect)
- Score: X/10
- Strengths: ...
- Areas to improve: ...
- Suggested improved answer: ...

**Here is the content to evaluate:**
Question: "{question}"
Student Answer: "{student_answer}"
`

var builtin = []Template{
	{
		Name:        "peel-examples",
		Description: "PEEL/PETAL essay rubric out of 15, steered by similar marked examples",
		Text:        peelIntro + peelExamplesSection + peelRubric,
	},
	{
		Name:        "peel",
		Description: "PEEL/PETAL essay rubric out of 15, without examples",
		Text:        peelIntro + peelRubric,
	},
	{
		Name:        "general",
		Description: "Short-answer correctness check with a score out of 10",
		Text:        generalText,
	},
}

// Names returns the built-in template names, default first.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for _, t := range builtin {
		names = append(names, t.Name)
	}
	return names
}

// All returns the built-in templates.
func All() []Template {
	return slices.Clone(builtin)
}

// Lookup returns the named template. An empty name selects DefaultTemplate.
func Lookup(name string) (Template, error) {
	if name == "" {
		name = DefaultTemplate
	}
	for _, t := range builtin {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, peelerrors.NewValidationError("template",
		fmt.Sprintf("Unknown prompt template %q. Available templates: %v.", name, Names()))
}
