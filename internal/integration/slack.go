package integration

type slackListChannelsInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Maximum number of channels to return (default 100)"`
}

type slackReadMessagesInput struct {
	Channel string `json:"channel" jsonschema_description:"Channel ID or name such as #general"`
	Limit   int    `json:"limit,omitempty" jsonschema_description:"Maximum number of messages to return (default 20)"`
}

type slackSendMessageInput struct {
	Channel  string `json:"channel" jsonschema_description:"Channel ID or name such as #general"`
	Text     string `json:"text" jsonschema_description:"Message text (Slack mrkdwn)"`
	ThreadTS string `json:"threadTs,omitempty" jsonschema_description:"Timestamp of the parent message to reply in a thread"`
}

// Slack reads and posts in the user's Slack workspace. Its connection is
// independent of Google.
func Slack() Family {
	return &family{
		name:  FamilySlack,
		title: "Slack",
		oauth: ProviderSlack,
		intro: "You are connected to the user's Slack workspace. You can use these tools:",
		tools: []ToolDefinition{
			{
				Name:               "slack_list_channels",
				Description:        "List channels the user can see",
				InputSchema:        inputSchema(&slackListChannelsInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               "slack_read_messages",
				Description:        "Read recent messages from a channel",
				InputSchema:        inputSchema(&slackReadMessagesInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               "slack_send_message",
				Description:        "Post a message to a channel or thread",
				InputSchema:        inputSchema(&slackSendMessageInput{}),
				RequiredCapability: CanSend,
			},
		},
	}
}
