package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string. Used for opaque
// token material (sessions, password reset tokens).
func NewKSUID() string {
	return ksuid.New().String()
}

// NewSnowflakeID generates a snowflake ID string for entity primary keys.
// The node ID comes from SNOWFLAKE_NODE (default 1). If node setup fails it
// falls back to a KSUID string so callers always get a unique ID.
func NewSnowflakeID() string {
	nodeOnce.Do(func() {
		id := int64(1)
		if env := os.Getenv("SNOWFLAKE_NODE"); env != "" {
			if parsed, err := strconv.ParseInt(env, 10, 64); err == nil {
				id = parsed
			}
		}
		node, _ = snowflake.NewNode(id)
	})
	if node == nil {
		return NewKSUID()
	}
	return node.Generate().String()
}
