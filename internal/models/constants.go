package models

const (
	// ContextSeparator joins retrieved chunks when they are handed to the model.
	ContextSeparator = "\n\n"

	NoDocumentAnswer   = "Upload a document first."
	NotAvailableAnswer = "Not available in document."
	UploadedMessage    = "PDF uploaded & indexed successfully!"
	upstreamPrefix     = "API Error: "
)

var (
	PromptTemplate = `
### CONTEXT ###
%s

### TASK ###
Answer the question based on the above context.

If the question requires FACTS (like names, numbers, dates, address, rent amount), answer EXACTLY from the context.

If the question requires ANALYSIS (like important keywords, summary, main points), analyze the context and generate the result.

If the required factual info is NOT present, reply EXACTLY: "` + NotAvailableAnswer + `"

### QUESTION ###
%s
`
)
