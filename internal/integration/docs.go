package integration

type docsSearchInput struct {
	Query string `json:"query" jsonschema_description:"Text to search for in document titles and content"`
}

type docsReadInput struct {
	DocumentID string `json:"documentId" jsonschema_description:"The Google Docs document ID"`
}

type docsAppendInput struct {
	DocumentID string `json:"documentId" jsonschema_description:"The Google Docs document ID"`
	Text       string `json:"text" jsonschema_description:"Text to append at the end of the document"`
}

type docsCreateInput struct {
	Title   string `json:"title" jsonschema_description:"Title of the new document"`
	Content string `json:"content,omitempty" jsonschema_description:"Initial document body"`
}

// Docs reads and writes Google Docs.
func Docs() Family {
	return &family{
		name:  FamilyDocs,
		title: "Google Docs",
		oauth: ProviderGoogle,
		intro: "You can work with the user's Google Docs using these tools:",
		tools: []ToolDefinition{
			{
				Name:               "docs_search",
				Description:        "Search the user's documents",
				InputSchema:        inputSchema(&docsSearchInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               "docs_read",
				Description:        "Read the full text of a document",
				InputSchema:        inputSchema(&docsReadInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               "docs_append",
				Description:        "Append text to an existing document",
				InputSchema:        inputSchema(&docsAppendInput{}),
				RequiredCapability: CanWrite,
			},
			{
				Name:               "docs_create",
				Description:        "Create a new document",
				InputSchema:        inputSchema(&docsCreateInput{}),
				RequiredCapability: CanCreate,
			},
		},
	}
}
