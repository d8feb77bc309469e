package kv

import (
	"github.com/dlt-interop/relay/relay/types"
)

// SATPSession retrieves the gateway's session record at
// satp_<session_id>.
func (s *Store) SATPSession(sessionID string) (*types.SATPSession, error) {
	sess := &types.SATPSession{}
	if err := s.Get(SATPSessionPrefix+sessionID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// SaveSATPSession overwrites the session record.
func (s *Store) SaveSATPSession(sessionID string, sess *types.SATPSession) error {
	return s.Set(SATPSessionPrefix+sessionID, sess)
}
