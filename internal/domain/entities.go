package domain

import (
	"encoding/json"
	"time"
)

// MonographChunk is a window of monograph text stored with its embedding.
type MonographChunk struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Text          string    `json:"text"`
	Embedding     []float32 `json:"embedding,omitempty"`
	SequenceIndex int       `json:"sequence_index"`
}

// ChunkBatch is the full chunk set of one source document.
// Generation is the store generation the batch was prepared against; zero skips the check.
type ChunkBatch struct {
	Source     string
	Chunks     []MonographChunk
	Generation uint64
}

type ScoredChunk struct {
	Chunk      MonographChunk `json:"chunk"`
	Similarity float64        `json:"similarity"`
}

type Section string

const (
	SectionMedicinal    Section = "MEDICINAL"
	SectionNonMedicinal Section = "NON_MEDICINAL"
)

type Ingredient struct {
	Name           string  `json:"name"`
	DeclaredAmount string  `json:"declared_amount,omitempty"`
	Section        Section `json:"section"`
}

// Query is the text embedded to look the ingredient up in the knowledge base.
func (i Ingredient) Query() string {
	if i.DeclaredAmount == "" {
		return i.Name
	}
	return i.Name + " " + i.DeclaredAmount
}

// RegulatoryClass is the regulatory tier of a medicinal ingredient.
// ClassNone marks non-medicinal ingredients.
type RegulatoryClass int

const (
	ClassNone RegulatoryClass = iota
	Class1
	Class2
	Class3
)

func (c RegulatoryClass) Valid() bool {
	return c >= Class1 && c <= Class3
}

func (c RegulatoryClass) MarshalJSON() ([]byte, error) {
	if c == ClassNone {
		return []byte("null"), nil
	}
	return json.Marshal(int(c))
}

func (c *RegulatoryClass) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ClassNone
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = RegulatoryClass(n)
	return nil
}

type ClassificationResult struct {
	Ingredient      Ingredient      `json:"ingredient"`
	RegulatoryClass RegulatoryClass `json:"regulatory_class"`
	ConfidenceScore float64         `json:"confidence_score"`
	MonographFound  bool            `json:"monograph_found"`
	Reasoning       string          `json:"reasoning"`
	SafetyNotes     string          `json:"safety_notes,omitempty"`
	// Degraded is set when the result is a fallback rather than a reasoned decision.
	Degraded bool `json:"degraded,omitempty"`
}

type ClassDistribution struct {
	Class1 int `json:"class_1"`
	Class2 int `json:"class_2"`
	Class3 int `json:"class_3"`
}

type Summary struct {
	TotalIngredients    int               `json:"total_ingredients"`
	MedicinalCount      int               `json:"medicinal_count"`
	NonMedicinalCount   int               `json:"non_medicinal_count"`
	HighConfidenceCount int               `json:"high_confidence_count"`
	ClassDistribution   ClassDistribution `json:"class_distribution"`
}

type AnalysisReport struct {
	Filename                string                 `json:"filename"`
	MedicinalIngredients    []ClassificationResult `json:"medicinal_ingredients"`
	NonMedicinalIngredients []ClassificationResult `json:"non_medicinal_ingredients"`
	Summary                 Summary                `json:"summary"`
	Error                   string                 `json:"error,omitempty"`
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobDiscarded JobStatus = "discarded"
)

type JobOutcome struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Status     JobStatus `json:"status"`
	Chunks     int       `json:"chunks,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

type KnowledgeBaseStatus struct {
	Ready           bool         `json:"ready"`
	DocumentsLoaded int          `json:"documents_loaded"`
	Pending         int          `json:"pending"`
	LastError       string       `json:"last_error,omitempty"`
	Jobs            []JobOutcome `json:"jobs,omitempty"`
}

type UploadedFile struct {
	Name string
	Data []byte
}

type Ack struct {
	Accepted bool     `json:"accepted"`
	Message  string   `json:"message"`
	JobIDs   []string `json:"job_ids,omitempty"`
}
