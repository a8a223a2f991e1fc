package coordinator

import "fmt"

// Key builders for the fixed coordinator keyspace. Every cross-pod state the
// core touches lives under one of these prefixes; no component should
// construct a key string inline.

func MessagesKey(userID string) string {
	return fmt.Sprintf("mirix:temp_messages:%s", userID)
}

func ConversationsKey(userID string) string {
	return fmt.Sprintf("mirix:user_conversations:%s", userID)
}

func AbsorbLockKey(userID string) string {
	return fmt.Sprintf("mirix:lock:absorb:%s", userID)
}

func InitLockKey(userID string) string {
	return fmt.Sprintf("mirix:lock:init:%s", userID)
}

func InitDoneKey(userID string) string {
	return fmt.Sprintf("mirix:user_init_done:%s", userID)
}

func UploadStatusKey(uploadID string) string {
	return fmt.Sprintf("mirix:upload_status:%s", uploadID)
}
