package integration

type sheetsListInput struct {
	Query string `json:"query,omitempty" jsonschema_description:"Optional text to match against spreadsheet titles"`
}

type sheetsReadInput struct {
	SpreadsheetID string `json:"spreadsheetId" jsonschema_description:"The spreadsheet ID"`
	Range         string `json:"range,omitempty" jsonschema_description:"A1 notation range such as Sheet1!A1:D20 (default: first sheet)"`
}

type sheetsWriteInput struct {
	SpreadsheetID string     `json:"spreadsheetId" jsonschema_description:"The spreadsheet ID"`
	Range         string     `json:"range" jsonschema_description:"A1 notation range to write to"`
	Values        [][]string `json:"values" jsonschema_description:"Rows of cell values"`
}

type sheetsCreateInput struct {
	Title  string   `json:"title" jsonschema_description:"Title of the new spreadsheet"`
	Sheets []string `json:"sheets,omitempty" jsonschema_description:"Names of the tabs to create"`
}

// Sheets reads and edits Google Sheets.
func Sheets() Family {
	return &family{
		name:  FamilySheets,
		title: "Google Sheets",
		oauth: ProviderGoogle,
		intro: "You can work with the user's Google Sheets using these tools:",
		tools: []ToolDefinition{
			{
				Name:               "sheets_list",
				Description:        "List the user's spreadsheets",
				InputSchema:        inputSchema(&sheetsListInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               "sheets_read",
				Description:        "Read cell values from a spreadsheet range",
				InputSchema:        inputSchema(&sheetsReadInput{}),
				RequiredCapability: CanRead,
			},
			{
				Name:               "sheets_write",
				Description:        "Overwrite cell values in a spreadsheet range",
				InputSchema:        inputSchema(&sheetsWriteInput{}),
				RequiredCapability: CanWrite,
			},
			{
				Name:               "sheets_append",
				Description:        "Append rows after the last row of a range",
				InputSchema:        inputSchema(&sheetsWriteInput{}),
				RequiredCapability: CanWrite,
			},
			{
				Name:               "sheets_create",
				Description:        "Create a new spreadsheet",
				InputSchema:        inputSchema(&sheetsCreateInput{}),
				RequiredCapability: CanCreate,
			},
		},
	}
}
