// Package update implements the check/download/verify/install pipeline
// (component G): a small state machine driven by the protocol client's
// heartbeat acks, not by a timer of its own.
package update

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"screencontrol-agent/internal/audit"
)

// State is one of the pipeline's fixed states.
type State string

const (
	StateIdle        State = "IDLE"
	StateChecking    State = "CHECKING"
	StateUpToDate    State = "UP_TO_DATE"
	StateAvailable   State = "AVAILABLE"
	StateDownloading State = "DOWNLOADING"
	StateDownloaded  State = "DOWNLOADED"
	StateInstalling  State = "INSTALLING"
	StateFailed      State = "FAILED"
)

// Manifest is the decoded /api/updates/check response.
type Manifest struct {
	UpdateAvailable bool   `json:"updateAvailable"`
	Reason          string `json:"reason,omitempty"`
	Version         string `json:"version"`
	Channel         string `json:"channel"`
	Size            int64  `json:"size"`
	SHA256          string `json:"sha256"`
	Filename        string `json:"filename"`
	ReleaseNotes    string `json:"releaseNotes,omitempty"`
	DownloadURL     string `json:"downloadUrl"`
	IsForced        bool   `json:"isForced"`
	ManifestJWT     string `json:"manifestJwt,omitempty"`
}

// manifestClaims mirrors the UpdateInfo fields the update service signs
// into manifestJwt, so the pipeline can check the JWT payload matches the
// plaintext manifest it rode alongside.
type manifestClaims struct {
	Version  string `json:"version"`
	SHA256   string `json:"sha256"`
	Channel  string `json:"channel"`
	IsForced bool   `json:"isForced"`
	jwt.RegisteredClaims
}

// ErrManifestUnsigned is returned when a manifest has no JWT, or the JWT
// fails signature or claim verification.
var ErrManifestUnsigned = fmt.Errorf("update: manifest signature invalid or missing")

// ErrChecksumMismatch is returned when the downloaded file's SHA-256
// doesn't match the manifest.
var ErrChecksumMismatch = fmt.Errorf("update: checksum mismatch")

// Options configures a Pipeline.
type Options struct {
	Log             zerolog.Logger
	HTTPClient      *http.Client
	ServerURL       string
	Platform        string
	Arch            string
	MachineID       string
	CurrentVersion  string
	Channel         string
	AutoDownload    bool
	AutoInstall     bool
	StateDir        string
	Ledger          *audit.Ledger
	PublicKey       *rsa.PublicKey // pinned manifest signing key; nil disables signature verification
	CheckEveryBeats int            // default 60
	FailedRetry     time.Duration  // default 10m
}

// Pipeline owns the update state machine. One heartbeat tick at a time
// drives it forward; nothing in this package runs its own timer.
type Pipeline struct {
	log        zerolog.Logger
	http       *http.Client
	serverURL  string
	platform   string
	arch       string
	machineID  string
	version    string
	channel    string
	autoDL     bool
	autoInst   bool
	stateDir   string
	ledger     *audit.Ledger
	pubKey     *rsa.PublicKey
	everyBeats int
	failedWait time.Duration

	mu         sync.Mutex
	state      State
	beatCount  int
	manifest   Manifest
	failedAt   time.Time
	downloaded string // path to the verified download, once DOWNLOADED
}

// New builds an idle Pipeline.
func New(opts Options) *Pipeline {
	every := opts.CheckEveryBeats
	if every <= 0 {
		every = 60
	}
	retry := opts.FailedRetry
	if retry <= 0 {
		retry = 10 * time.Minute
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Pipeline{
		log:        opts.Log,
		http:       httpClient,
		serverURL:  opts.ServerURL,
		platform:   opts.Platform,
		arch:       opts.Arch,
		machineID:  opts.MachineID,
		version:    opts.CurrentVersion,
		channel:    opts.Channel,
		autoDL:     opts.AutoDownload,
		autoInst:   opts.AutoInstall,
		stateDir:   opts.StateDir,
		ledger:     opts.Ledger,
		pubKey:     opts.PublicKey,
		everyBeats: every,
		failedWait: retry,
		state:      StateIdle,
	}
}

// State reports the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// OnHeartbeatAck advances the counter on every heartbeat ack and starts a
// check once it reaches everyBeats and the server signaled a pending
// update (updateFlag > 0). Resets the counter either way. If the pipeline
// is FAILED, it self-resets to IDLE once failedWait has elapsed.
func (p *Pipeline) OnHeartbeatAck(ctx context.Context, updateFlag int) {
	p.mu.Lock()
	if p.state == StateFailed && time.Since(p.failedAt) >= p.failedWait {
		p.state = StateIdle
	}
	p.beatCount++
	due := p.beatCount >= p.everyBeats
	if due {
		p.beatCount = 0
	}
	p.mu.Unlock()

	if !due || updateFlag <= 0 {
		return
	}
	go p.runCheck(ctx, updateFlag == 2)
}

func (p *Pipeline) runCheck(ctx context.Context, forced bool) {
	m, err := p.Check(ctx)
	if err != nil {
		p.fail("check", err)
		return
	}
	if !m.UpdateAvailable {
		p.setState(StateUpToDate)
		return
	}
	p.mu.Lock()
	p.manifest = m
	p.mu.Unlock()
	p.setState(StateAvailable)

	if !p.autoDL && !forced {
		return
	}
	path, err := p.Download(ctx, m, nil)
	if err != nil {
		p.fail("download", err)
		return
	}
	if p.autoInst || forced || m.IsForced {
		if err := p.Install(path, m); err != nil {
			p.fail("install", err)
		}
	}
}

// fail transitions the pipeline to FAILED from any non-terminal state and
// records the outcome under subject so /audit/recent distinguishes a
// rejected check from a failed download or install.
func (p *Pipeline) fail(subject string, err error) {
	p.log.Error().Err(err).Msg("update pipeline failed")
	p.mu.Lock()
	p.state = StateFailed
	p.failedAt = time.Now()
	p.mu.Unlock()
	p.recordAudit(subject, "error", err)
}

func (p *Pipeline) recordAudit(subject, outcome string, err error) {
	if p.ledger == nil {
		return
	}
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	_ = p.ledger.Append(time.Now(), "update", subject, string(p.State()), outcome, errText)
}

// Check performs one GET /api/updates/check round trip and verifies the
// manifest's JWT signature (if a public key is pinned) before returning.
func (p *Pipeline) Check(ctx context.Context) (Manifest, error) {
	p.setState(StateChecking)

	q := url.Values{}
	q.Set("platform", p.platform)
	q.Set("arch", p.arch)
	q.Set("currentVersion", p.version)
	q.Set("channel", p.channel)
	if p.machineID != "" {
		q.Set("machineId", p.machineID)
	}

	reqURL := p.serverURL + "/api/updates/check?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Manifest{}, err
	}
	if p.machineID != "" {
		req.Header.Set("X-Machine-Id", p.machineID)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("update check request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Manifest{}, fmt.Errorf("update check status %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decode update manifest: %w", err)
	}

	if m.UpdateAvailable {
		if err := p.verifyManifest(m); err != nil {
			return Manifest{}, err
		}
	}
	return m, nil
}

// verifyManifest checks manifestJwt's signature against the pinned public
// key and that its claims match the plaintext manifest fields. A missing
// or invalid signature is treated identically to a checksum mismatch: the
// caller must fail the pipeline, never proceed to install.
func (p *Pipeline) verifyManifest(m Manifest) error {
	if p.pubKey == nil {
		return nil // no key pinned: signature verification disabled by configuration
	}
	if m.ManifestJWT == "" {
		return ErrManifestUnsigned
	}

	claims := &manifestClaims{}
	_, err := jwt.ParseWithClaims(m.ManifestJWT, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.pubKey, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestUnsigned, err)
	}
	if claims.Version != m.Version || claims.SHA256 != m.SHA256 || claims.Channel != m.Channel || claims.IsForced != m.IsForced {
		return fmt.Errorf("%w: claims do not match manifest", ErrManifestUnsigned)
	}
	return nil
}
