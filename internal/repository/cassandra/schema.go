package cassandra

import (
	"fmt"

	"github.com/gocql/gocql"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		conversation_key text,
		bucket int,
		message_id timeuuid,
		sender_id uuid,
		recipient_id uuid,
		group_id uuid,
		chat_type text,
		type text,
		text text,
		media text,
		reply_to uuid,
		is_edited boolean,
		edited_at timestamp,
		original_text text,
		reactions map<uuid, text>,
		is_deleted boolean,
		deleted_at timestamp,
		created_at timestamp,
		PRIMARY KEY ((conversation_key, bucket), message_id)
	) WITH CLUSTERING ORDER BY (message_id DESC)`,
	`CREATE TABLE IF NOT EXISTS messages_by_id (
		message_id timeuuid PRIMARY KEY,
		conversation_key text,
		bucket int
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_buckets (
		conversation_key text,
		bucket int,
		PRIMARY KEY (conversation_key, bucket)
	) WITH CLUSTERING ORDER BY (bucket DESC)`,
}

// EnsureSchema creates the message tables in the session keyspace
func EnsureSchema(session *gocql.Session) error {
	for _, stmt := range schema {
		if err := session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("failed to apply cassandra schema: %w", err)
		}
	}
	return nil
}
