package models

// Page is one unit of extracted document text, kept in source order.
type Page struct {
	Number int
	Text   string
}

// Chunk is the unit of embedding and retrieval.
type Chunk struct {
	ID      string
	Content string
	Source  string
	Page    int
	Seq     int
}

// Hit is a retrieved chunk together with its similarity to the query.
type Hit struct {
	Chunk      Chunk
	Similarity float32
}

// Turn is one question/answer exchange. Sources is exactly the set of
// chunks that was supplied to the model as context, in retrieval order.
type Turn struct {
	Question string
	Answer   string
	Sources  []Hit
}
