package examples

// Example is a previously marked evaluation used to steer the model's tone and scoring.
type Example struct {
	Label string `yaml:"label" json:"label"`
	Band  string `yaml:"band,omitempty" json:"band,omitempty"` // score range, e.g. "13–15"
	Text  string `yaml:"text" json:"text"`                     // question, answer, feedback and score as one block
}

// Corpus is an ordered, immutable set of examples. The order is the insertion order
// used for tie-breaking during retrieval.
type Corpus struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Examples    []Example `yaml:"examples" json:"examples"`
}

// Len returns the number of examples in the corpus.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Examples)
}

// Texts returns the example texts in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, 0, c.Len())
	for _, ex := range c.Examples {
		texts = append(texts, ex.Text)
	}
	return texts
}

// Lookup returns the example with the given label.
func (c *Corpus) Lookup(label string) (Example, bool) {
	for _, ex := range c.Examples {
		if ex.Label == label {
			return ex, true
		}
	}
	return Example{}, false
}
