package integration

type calendarListEventsInput struct {
	TimeMin    string `json:"timeMin,omitempty" jsonschema_description:"Start of the window (RFC3339, default now)"`
	TimeMax    string `json:"timeMax,omitempty" jsonschema_description:"End of the window (RFC3339)"`
	Query      string `json:"query,omitempty" jsonschema_description:"Free text to match against events"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema_description:"Maximum number of events (default 10)"`
	CalendarID string `json:"calendarId,omitempty" jsonschema_description:"Calendar ID (default primary)"`
}

type calendarCreateEventInput struct {
	Summary     string   `json:"summary" jsonschema_description:"Event title"`
	Start       string   `json:"start" jsonschema_description:"Start time (RFC3339)"`
	End         string   `json:"end" jsonschema_description:"End time (RFC3339)"`
	Description string   `json:"description,omitempty" jsonschema_description:"Event description"`
	Location    string   `json:"location,omitempty" jsonschema_description:"Event location"`
	Attendees   []string `json:"attendees,omitempty" jsonschema_description:"Attendee email addresses"`
	CalendarID  string   `json:"calendarId,omitempty" jsonschema_description:"Calendar ID (default primary)"`
}

type calendarUpdateEventInput struct {
	EventID     string   `json:"eventId" jsonschema_description:"The event ID"`
	Summary     string   `json:"summary,omitempty" jsonschema_description:"New event title"`
	Start       string   `json:"start,omitempty" jsonschema_description:"New start time (RFC3339)"`
	End         string   `json:"end,omitempty" jsonschema_description:"New end time (RFC3339)"`
	Description string   `json:"description,omitempty" jsonschema_description:"New description"`
	Location    string   `json:"location,omitempty" jsonschema_description:"New location"`
	Attendees   []string `json:"attendees,omitempty" jsonschema_description:"Replacement attendee list"`
	CalendarID  string   `json:"calendarId,omitempty" jsonschema_description:"Calendar ID (default primary)"`
}

type calendarDeleteEventInput struct {
	EventID    string `json:"eventId" jsonschema_description:"The event ID"`
	CalendarID string `json:"calendarId,omitempty" jsonschema_description:"Calendar ID (default primary)"`
}

// Calendar manages events on the user's Google Calendar.
func Calendar() Family {
	return &family{
		name:  FamilyCalendar,
		title: "Google Calendar",
		oauth: ProviderGoogle,
		intro: "You are connected to the user's Google Calendar. You can use these tools:",
		tools: []ToolDefinition{
			{
				Name:               "calendar_list_events",
				Description:        "List upcoming events, optionally within a time window",
				InputSchema:        inputSchema(&calendarListEventsInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               "calendar_create_event",
				Description:        "Create a calendar event",
				InputSchema:        inputSchema(&calendarCreateEventInput{}),
				RequiredCapability: CanCreate,
			},
			{
				Name:               "calendar_update_event",
				Description:        "Update fields of an existing event",
				InputSchema:        inputSchema(&calendarUpdateEventInput{}),
				RequiredCapability: CanUpdate,
			},
			{
				Name:               "calendar_delete_event",
				Description:        "Delete an event",
				InputSchema:        inputSchema(&calendarDeleteEventInput{}),
				RequiredCapability: CanDelete,
			},
		},
	}
}
