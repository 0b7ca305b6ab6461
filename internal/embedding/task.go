package embedding

import "fmt"

// TaskType tells the embedding model what the vector will be used for.
type TaskType int

const (
	TaskRetrievalQuery TaskType = iota
	TaskRetrievalDocument
	TaskSemanticSimilarity
	TaskClassification
	TaskClustering
	TaskQuestionAnswering
	TaskFactVerification
	TaskCodeRetrieval
)

func (t TaskType) String() string {
	switch t {
	case TaskRetrievalQuery:
		return "retrieval_query"
	case TaskRetrievalDocument:
		return "retrieval_document"
	case TaskSemanticSimilarity:
		return "semantic_similarity"
	case TaskClassification:
		return "classification"
	case TaskClustering:
		return "clustering"
	case TaskQuestionAnswering:
		return "question_answering"
	case TaskFactVerification:
		return "fact_verification"
	case TaskCodeRetrieval:
		return "code_retrieval"
	default:
		return fmt.Sprintf("task(%d)", int(t))
	}
}

// EmbedData is one input to an embedder.
type EmbedData struct {
	Text  string
	Task  TaskType
	Title string
	// IsQuery selects the query form for tasks that embed both sides.
	IsQuery bool
}

// Document returns EmbedData for a stored passage.
func Document(text string) EmbedData {
	return EmbedData{Text: text, Task: TaskRetrievalDocument}
}

// Query returns EmbedData for a search query.
func Query(text string) EmbedData {
	return EmbedData{Text: text, Task: TaskRetrievalQuery, IsQuery: true}
}

const (
	documentTemplate = "title: %s | text: %s"
	queryTemplate    = "task: %s | query: %s"
)

// FormatInput renders d in the prompt format expected by Gecko-style
// embedding models.
func FormatInput(d EmbedData) string {
	if d.queryForm() {
		return fmt.Sprintf(queryTemplate, taskName(d.Task), d.Text)
	}
	title := d.Title
	if title == "" {
		title = "none"
	}
	return fmt.Sprintf(documentTemplate, title, d.Text)
}

// queryForm reports whether d should be rendered with the query template.
func (d EmbedData) queryForm() bool {
	switch d.Task {
	case TaskRetrievalDocument:
		return false
	case TaskQuestionAnswering, TaskFactVerification, TaskCodeRetrieval:
		return d.IsQuery
	default:
		return true
	}
}

func taskName(t TaskType) string {
	switch t {
	case TaskRetrievalDocument:
		return ""
	case TaskSemanticSimilarity:
		return "sentence similarity"
	case TaskClassification:
		return "classification"
	case TaskClustering:
		return "clustering"
	case TaskQuestionAnswering:
		return "question answering"
	case TaskFactVerification:
		return "fact checking"
	case TaskCodeRetrieval:
		return "code retrieval"
	default:
		return "search result"
	}
}
