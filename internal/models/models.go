package models

// All lists the tables the chat store migrates on start.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Friendship{},
		&ChatSession{},
		&ChatMessage{},
		&Invitation{},
		&ActivityLog{},
		&UploadRecord{},
	}
}
