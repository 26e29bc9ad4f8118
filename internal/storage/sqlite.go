package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/trustd/trustd/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStorage implements Storage with a SQLite backend
type SQLiteStorage struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite-based storage
func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "trustd.db")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ss := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return ss, nil
}

// initSchema creates the database schema
func (ss *SQLiteStorage) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	_, err = ss.db.Exec(string(schema))
	return err
}

// Close closes the database connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// DatabasePath returns the database file path
func (ss *SQLiteStorage) DatabasePath() string {
	return ss.path
}

// Device storage

// CreateDevice adds a new device record
func (ss *SQLiteStorage) CreateDevice(device *model.Device) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if device.ID == "" {
		return ErrInvalidID
	}

	var exists bool
	err := ss.db.QueryRow("SELECT EXISTS(SELECT 1 FROM devices WHERE fingerprint = ?)", device.Fingerprint).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking fingerprint: %w", err)
	}
	if exists {
		return fmt.Errorf("fingerprint %s: %w", device.Fingerprint, ErrDuplicateDevice)
	}

	_, err = ss.db.Exec(`
		INSERT INTO devices (id, fingerprint, name, owner, trust_score, status, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, device.ID, device.Fingerprint, device.Name, device.Owner, device.TrustScore, device.Status,
		device.LastSeen, device.CreatedAt, device.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// GetDevice retrieves a device by fingerprint
func (ss *SQLiteStorage) GetDevice(fingerprint string) (*model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return ss.queryDevice(`
		SELECT id, fingerprint, name, owner, trust_score, status, last_seen, created_at, updated_at
		FROM devices WHERE fingerprint = ? LIMIT 1
	`, fingerprint)
}

// GetDeviceByID retrieves a device by its ID
func (ss *SQLiteStorage) GetDeviceByID(id string) (*model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return ss.queryDevice(`
		SELECT id, fingerprint, name, owner, trust_score, status, last_seen, created_at, updated_at
		FROM devices WHERE id = ? LIMIT 1
	`, id)
}

// ListUserDevices returns all devices for an owner, most recently seen first
func (ss *SQLiteStorage) ListUserDevices(owner string) ([]model.Device, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, fingerprint, name, owner, trust_score, status, last_seen, created_at, updated_at
		FROM devices WHERE owner = ?
		ORDER BY last_seen DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// UpdateDevice updates an existing device record
func (ss *SQLiteStorage) UpdateDevice(device *model.Device) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`
		UPDATE devices
		SET name = ?, owner = ?, trust_score = ?, status = ?, last_seen = ?, updated_at = ?
		WHERE fingerprint = ?
	`, device.Name, device.Owner, device.TrustScore, device.Status, device.LastSeen,
		device.UpdatedAt, device.Fingerprint)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("fingerprint %s: %w", device.Fingerprint, ErrDeviceNotFound)
	}

	return nil
}

// SetTrustScore writes an absolute trust score and refreshes last_seen.
// The caller is responsible for clamping the score to [0,100].
func (ss *SQLiteStorage) SetTrustScore(fingerprint string, score int, seenAt time.Time) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`
		UPDATE devices
		SET trust_score = ?, last_seen = ?, updated_at = ?
		WHERE fingerprint = ?
	`, score, seenAt, seenAt, fingerprint)
	if err != nil {
		return fmt.Errorf("setting trust score: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("fingerprint %s: %w", fingerprint, ErrDeviceNotFound)
	}

	return nil
}

// AdjustTrustScore applies a delta and clamps the result to [0,100] in a
// single statement, so concurrent adjustments cannot lose updates.
func (ss *SQLiteStorage) AdjustTrustScore(fingerprint string, delta int, seenAt time.Time) (int, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`
		UPDATE devices
		SET trust_score = MAX(0, MIN(100, trust_score + ?)), last_seen = ?, updated_at = ?
		WHERE fingerprint = ?
	`, delta, seenAt, seenAt, fingerprint)
	if err != nil {
		return 0, fmt.Errorf("adjusting trust score: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return 0, fmt.Errorf("fingerprint %s: %w", fingerprint, ErrDeviceNotFound)
	}

	var score int
	if err := ss.db.QueryRow("SELECT trust_score FROM devices WHERE fingerprint = ?", fingerprint).Scan(&score); err != nil {
		return 0, fmt.Errorf("reading trust score: %w", err)
	}

	return score, nil
}

// MarkDevicesInactive flips ACTIVE devices not seen since the cutoff to INACTIVE
func (ss *SQLiteStorage) MarkDevicesInactive(cutoff time.Time) (int64, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec(`
		UPDATE devices
		SET status = ?, updated_at = ?
		WHERE status = ? AND last_seen < ?
	`, model.StatusInactive, time.Now(), model.StatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("marking devices inactive: %w", err)
	}

	return result.RowsAffected()
}

// Session storage

// CreateSession persists a new device session
func (ss *SQLiteStorage) CreateSession(session *model.DeviceSession) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	_, err := ss.db.Exec(`
		INSERT INTO device_sessions (id, device_id, user_id, token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, session.ID, session.DeviceID, session.UserID, session.Token, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	return nil
}

// GetSession retrieves a session row by token. Expiry is the caller's concern.
func (ss *SQLiteStorage) GetSession(token string) (*model.DeviceSession, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var s model.DeviceSession
	err := ss.db.QueryRow(`
		SELECT id, device_id, user_id, token, expires_at, created_at
		FROM device_sessions WHERE token = ? LIMIT 1
	`, token).Scan(&s.ID, &s.DeviceID, &s.UserID, &s.Token, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	return &s, nil
}

// DeleteSession removes a session by token
func (ss *SQLiteStorage) DeleteSession(token string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	// Delete-if-exists: revoking an absent or already-expired session is not an error
	if _, err := ss.db.Exec("DELETE FROM device_sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteDeviceSessions removes all sessions for a device
func (ss *SQLiteStorage) DeleteDeviceSessions(deviceID string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if _, err := ss.db.Exec("DELETE FROM device_sessions WHERE device_id = ?", deviceID); err != nil {
		return fmt.Errorf("deleting device sessions: %w", err)
	}
	return nil
}

// DeleteUserSessions removes all sessions for a user
func (ss *SQLiteStorage) DeleteUserSessions(userID string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if _, err := ss.db.Exec("DELETE FROM device_sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}

// ListDeviceSessions returns unexpired sessions for a device, newest first
func (ss *SQLiteStorage) ListDeviceSessions(deviceID string, now time.Time) ([]model.DeviceSession, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, device_id, user_id, token, expires_at, created_at
		FROM device_sessions
		WHERE device_id = ? AND expires_at > ?
		ORDER BY created_at DESC
	`, deviceID, now)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.DeviceSession
	for rows.Next() {
		var s model.DeviceSession
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.UserID, &s.Token, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// DeleteExpiredSessions removes all sessions past their expiry time
func (ss *SQLiteStorage) DeleteExpiredSessions(now time.Time) (int64, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec("DELETE FROM device_sessions WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	return result.RowsAffected()
}

// Segment storage

// CreateSegment adds a new network segment
func (ss *SQLiteStorage) CreateSegment(segment *model.NetworkSegment) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if segment.ID == "" {
		return ErrInvalidID
	}

	// Distinguish which uniqueness constraint failed for precise admin errors
	var name, cidr string
	err := ss.db.QueryRow(`
		SELECT name, cidr FROM network_segments WHERE name = ? OR cidr = ? LIMIT 1
	`, segment.Name, segment.CIDR).Scan(&name, &cidr)
	if err == nil {
		if name == segment.Name {
			return fmt.Errorf("segment name %q already in use: %w", segment.Name, ErrDuplicateSegment)
		}
		return fmt.Errorf("segment CIDR %q already in use: %w", segment.CIDR, ErrDuplicateSegment)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking segment uniqueness: %w", err)
	}

	_, err = ss.db.Exec(`
		INSERT INTO network_segments (id, name, cidr, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, segment.ID, segment.Name, segment.CIDR, segment.Description, segment.CreatedAt, segment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting segment: %w", err)
	}

	return nil
}

// GetSegment retrieves a segment by ID
func (ss *SQLiteStorage) GetSegment(id string) (*model.NetworkSegment, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var s model.NetworkSegment
	err := ss.db.QueryRow(`
		SELECT id, name, cidr, description, created_at, updated_at
		FROM network_segments WHERE id = ? LIMIT 1
	`, id).Scan(&s.ID, &s.Name, &s.CIDR, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("segment %s: %w", id, ErrSegmentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying segment: %w", err)
	}

	return &s, nil
}

// ListSegments returns all segments, newest first
func (ss *SQLiteStorage) ListSegments() ([]model.NetworkSegment, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, name, cidr, description, created_at, updated_at
		FROM network_segments
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying segments: %w", err)
	}
	defer rows.Close()

	var segments []model.NetworkSegment
	for rows.Next() {
		var s model.NetworkSegment
		if err := rows.Scan(&s.ID, &s.Name, &s.CIDR, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		segments = append(segments, s)
	}

	return segments, rows.Err()
}

// UpdateSegment updates an existing segment
func (ss *SQLiteStorage) UpdateSegment(segment *model.NetworkSegment) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	// Same uniqueness check as on create, excluding the segment itself
	var name, cidr string
	err := ss.db.QueryRow(`
		SELECT name, cidr FROM network_segments
		WHERE (name = ? OR cidr = ?) AND id != ? LIMIT 1
	`, segment.Name, segment.CIDR, segment.ID).Scan(&name, &cidr)
	if err == nil {
		if name == segment.Name {
			return fmt.Errorf("segment name %q already in use: %w", segment.Name, ErrDuplicateSegment)
		}
		return fmt.Errorf("segment CIDR %q already in use: %w", segment.CIDR, ErrDuplicateSegment)
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("checking segment uniqueness: %w", err)
	}

	result, err := ss.db.Exec(`
		UPDATE network_segments
		SET name = ?, cidr = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, segment.Name, segment.CIDR, segment.Description, segment.UpdatedAt, segment.ID)
	if err != nil {
		return fmt.Errorf("updating segment: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("segment %s: %w", segment.ID, ErrSegmentNotFound)
	}

	return nil
}

// DeleteSegment removes a segment and every policy referencing it.
// Policies go first so no dangling references survive a partial failure.
func (ss *SQLiteStorage) DeleteSegment(id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM isolation_policies
		WHERE source_segment_id = ? OR destination_segment_id = ?
	`, id, id)
	if err != nil {
		return fmt.Errorf("deleting segment policies: %w", err)
	}

	result, err := tx.Exec("DELETE FROM network_segments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting segment: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrSegmentNotFound)
	}

	return tx.Commit()
}

// Policy storage

// CreatePolicy adds a new isolation policy after verifying both segments
// exist and the ordered pair is not already covered.
func (ss *SQLiteStorage) CreatePolicy(policy *model.IsolationPolicy) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if policy.ID == "" {
		return ErrInvalidID
	}

	tx, err := ss.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM network_segments WHERE id = ?)", policy.SourceSegmentID).Scan(&exists); err != nil {
		return fmt.Errorf("checking source segment: %w", err)
	}
	if !exists {
		return fmt.Errorf("source segment %s: %w", policy.SourceSegmentID, ErrSegmentNotFound)
	}

	if err := tx.QueryRow("SELECT EXISTS(SELECT 1 FROM network_segments WHERE id = ?)", policy.DestinationSegmentID).Scan(&exists); err != nil {
		return fmt.Errorf("checking destination segment: %w", err)
	}
	if !exists {
		return fmt.Errorf("destination segment %s: %w", policy.DestinationSegmentID, ErrSegmentNotFound)
	}

	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM isolation_policies WHERE source_segment_id = ? AND destination_segment_id = ?)
	`, policy.SourceSegmentID, policy.DestinationSegmentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking policy uniqueness: %w", err)
	}
	if exists {
		return fmt.Errorf("pair (%s, %s): %w", policy.SourceSegmentID, policy.DestinationSegmentID, ErrDuplicatePolicy)
	}

	conditions, err := encodeConditions(policy.Conditions)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO isolation_policies (id, source_segment_id, destination_segment_id, action, conditions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, policy.ID, policy.SourceSegmentID, policy.DestinationSegmentID, policy.Action, conditions,
		policy.CreatedAt, policy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting policy: %w", err)
	}

	return tx.Commit()
}

// GetPolicy retrieves a policy by ID
func (ss *SQLiteStorage) GetPolicy(id string) (*model.IsolationPolicy, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, source_segment_id, destination_segment_id, action, conditions, created_at, updated_at
		FROM isolation_policies WHERE id = ? LIMIT 1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying policy: %w", err)
	}
	defer rows.Close()

	policies, err := scanPolicies(rows)
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		return nil, fmt.Errorf("policy %s: %w", id, ErrPolicyNotFound)
	}

	return &policies[0], nil
}

// ListPolicies returns all policies, newest first
func (ss *SQLiteStorage) ListPolicies() ([]model.IsolationPolicy, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, source_segment_id, destination_segment_id, action, conditions, created_at, updated_at
		FROM isolation_policies
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying policies: %w", err)
	}
	defer rows.Close()

	return scanPolicies(rows)
}

// ListPoliciesForPair returns policies for the exact ordered segment pair
func (ss *SQLiteStorage) ListPoliciesForPair(sourceID, destinationID string) ([]model.IsolationPolicy, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.Query(`
		SELECT id, source_segment_id, destination_segment_id, action, conditions, created_at, updated_at
		FROM isolation_policies
		WHERE source_segment_id = ? AND destination_segment_id = ?
		ORDER BY created_at ASC
	`, sourceID, destinationID)
	if err != nil {
		return nil, fmt.Errorf("querying pair policies: %w", err)
	}
	defer rows.Close()

	return scanPolicies(rows)
}

// UpdatePolicy updates a policy's action and conditions in place
func (ss *SQLiteStorage) UpdatePolicy(policy *model.IsolationPolicy) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	conditions, err := encodeConditions(policy.Conditions)
	if err != nil {
		return err
	}

	result, err := ss.db.Exec(`
		UPDATE isolation_policies
		SET action = ?, conditions = ?, updated_at = ?
		WHERE id = ?
	`, policy.Action, conditions, policy.UpdatedAt, policy.ID)
	if err != nil {
		return fmt.Errorf("updating policy: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("policy %s: %w", policy.ID, ErrPolicyNotFound)
	}

	return nil
}

// DeletePolicy removes a policy by ID
func (ss *SQLiteStorage) DeletePolicy(id string) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	result, err := ss.db.Exec("DELETE FROM isolation_policies WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting policy: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("policy %s: %w", id, ErrPolicyNotFound)
	}

	return nil
}

// Audit storage

// AppendDeviceLog appends an activity record for a device
func (ss *SQLiteStorage) AppendDeviceLog(entry *model.DeviceLog) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	details, err := encodeDetails(entry.Details)
	if err != nil {
		return err
	}

	_, err = ss.db.Exec(`
		INSERT INTO device_logs (id, device_id, action, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.DeviceID, entry.Action, details, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting device log: %w", err)
	}

	return nil
}

// ListDeviceLogs returns recent activity for a device, newest first
func (ss *SQLiteStorage) ListDeviceLogs(deviceID string, limit int) ([]model.DeviceLog, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := ss.db.Query(`
		SELECT id, device_id, action, details, timestamp
		FROM device_logs
		WHERE device_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying device logs: %w", err)
	}
	defer rows.Close()

	var logs []model.DeviceLog
	for rows.Next() {
		var entry model.DeviceLog
		var details sql.NullString
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &entry.Action, &details, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning device log: %w", err)
		}
		if entry.Details, err = decodeDetails(details); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

// AppendViolation appends a denied-access record
func (ss *SQLiteStorage) AppendViolation(entry *model.ViolationLog) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	details, err := encodeDetails(entry.Details)
	if err != nil {
		return err
	}

	_, err = ss.db.Exec(`
		INSERT INTO violation_logs (id, source_segment_id, destination_segment_id, user_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.SourceSegmentID, entry.DestinationSegmentID, entry.UserID, details, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting violation log: %w", err)
	}

	return nil
}

// ListViolations returns recent violations, newest first
func (ss *SQLiteStorage) ListViolations(limit int) ([]model.ViolationLog, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := ss.db.Query(`
		SELECT id, source_segment_id, destination_segment_id, user_id, details, timestamp
		FROM violation_logs
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying violations: %w", err)
	}
	defer rows.Close()

	var violations []model.ViolationLog
	for rows.Next() {
		var entry model.ViolationLog
		var userID, details sql.NullString
		if err := rows.Scan(&entry.ID, &entry.SourceSegmentID, &entry.DestinationSegmentID, &userID, &details, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning violation: %w", err)
		}
		entry.UserID = userID.String
		if entry.Details, err = decodeDetails(details); err != nil {
			return nil, err
		}
		violations = append(violations, entry)
	}

	return violations, rows.Err()
}

// Helper functions

func (ss *SQLiteStorage) queryDevice(query string, args ...interface{}) (*model.Device, error) {
	var d model.Device
	err := ss.db.QueryRow(query, args...).Scan(&d.ID, &d.Fingerprint, &d.Name, &d.Owner,
		&d.TrustScore, &d.Status, &d.LastSeen, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device: %w", err)
	}

	return &d, nil
}

func scanDevices(rows *sql.Rows) ([]model.Device, error) {
	var devices []model.Device

	for rows.Next() {
		var d model.Device
		err := rows.Scan(&d.ID, &d.Fingerprint, &d.Name, &d.Owner, &d.TrustScore, &d.Status,
			&d.LastSeen, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}

func scanPolicies(rows *sql.Rows) ([]model.IsolationPolicy, error) {
	var policies []model.IsolationPolicy

	for rows.Next() {
		var p model.IsolationPolicy
		var conditions sql.NullString
		err := rows.Scan(&p.ID, &p.SourceSegmentID, &p.DestinationSegmentID, &p.Action,
			&conditions, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning policy: %w", err)
		}
		if p.Conditions, err = decodeConditions(conditions); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}

	return policies, rows.Err()
}
