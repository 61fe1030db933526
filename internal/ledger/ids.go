package ledger

import "github.com/bwmarrin/snowflake"

// IDGenerator produces unique therapy event ids.
type IDGenerator interface {
	NextID() string
}

// SnowflakeIDs generates time-ordered ids from a snowflake node.
type SnowflakeIDs struct {
	node *snowflake.Node
}

// NewSnowflakeIDs creates a generator for node (0-1023).
func NewSnowflakeIDs(node int64) (*SnowflakeIDs, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &SnowflakeIDs{node: n}, nil
}

// NextID returns a new id.
func (s *SnowflakeIDs) NextID() string {
	return s.node.Generate().String()
}
