package integration

// Field names that the dispatcher reads or rewrites on Gmail compose calls.
const (
	ToolGmailSend                   = "gmail_send"
	ToolGmailDraft                  = "gmail_draft"
	FieldIncludeUploadedAttachments = "includeUploadedAttachments"
)

type gmailSearchInput struct {
	Query      string `json:"query" jsonschema_description:"Gmail search query, same syntax as the Gmail search box (e.g. from:boss@example.com is:unread)"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema_description:"Maximum number of messages to return (default 10, max 50)"`
}

type gmailMessageInput struct {
	MessageID string `json:"messageId" jsonschema_description:"The Gmail message ID"`
}

type gmailComposeInput struct {
	To                         []string `json:"to" jsonschema_description:"Recipient email addresses"`
	Subject                    string   `json:"subject" jsonschema_description:"Email subject"`
	Body                       string   `json:"body" jsonschema_description:"Email body (plain text)"`
	Cc                         []string `json:"cc,omitempty" jsonschema_description:"CC recipients"`
	Bcc                        []string `json:"bcc,omitempty" jsonschema_description:"BCC recipients"`
	ThreadID                   string   `json:"threadId,omitempty" jsonschema_description:"Thread ID when replying in an existing thread"`
	IncludeUploadedAttachments bool     `json:"includeUploadedAttachments,omitempty" jsonschema_description:"Attach the files the user uploaded with this request"`
}

// Gmail reads, sends, drafts and archives mail on the user's Google account.
func Gmail() Family {
	return &family{
		name:  FamilyGmail,
		title: "Gmail",
		oauth: ProviderGoogle,
		intro: "You are connected to the user's Gmail account. You can use these tools:",
		tools: []ToolDefinition{
			{
				Name:               "gmail_search",
				Description:        "Search emails using Gmail query syntax",
				InputSchema:        inputSchema(&gmailSearchInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               "gmail_get_message",
				Description:        "Get a specific email by ID with full details",
				InputSchema:        inputSchema(&gmailMessageInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               ToolGmailSend,
				Description:        "Send a new email or reply on behalf of the user",
				InputSchema:        inputSchema(&gmailComposeInput{}),
				RequiredCapability: CanSend,
			},
			{
				Name:               ToolGmailDraft,
				Description:        "Create a draft email without sending it",
				InputSchema:        inputSchema(&gmailComposeInput{}),
				RequiredCapability: CanDraft,
			},
			{
				Name:               "gmail_archive",
				Description:        "Archive an email (remove it from the inbox)",
				InputSchema:        inputSchema(&gmailMessageInput{}),
				RequiredCapability: CanModify,
			},
		},
	}
}
