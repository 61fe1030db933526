package models

// UserData is the export bundle of everything stored for one user.
type UserData struct {
	User         string           `json:"user" yaml:"user"`
	Products     []Product        `json:"products" yaml:"products"`
	Events       []TherapyEvent   `json:"therapyData" yaml:"therapyData"`
	UsageReports []UsageReport    `json:"usageReports" yaml:"usageReports"`
	Reminder     ReminderSettings `json:"notifications" yaml:"notifications"`
	LastSync     string           `json:"lastSync,omitempty" yaml:"lastSync,omitempty"`
}
