package domain

// DefaultUserKey is the sentinel user id holding a workspace's default
// language. It is never returned from BatchGet as a member entry.
const DefaultUserKey = "_default"

// DefaultLanguage applies when a workspace has no default row of its own.
const DefaultLanguage = "en"

// Preference is one (workspace, user) language preference record.
type Preference struct {
	Workspace string
	UserID    string
	Language  string
}
