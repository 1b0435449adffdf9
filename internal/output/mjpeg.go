package output

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/porthole/porthole/internal/logger"
)

const defaultQuality = 80

// Stats describes the MJPEG stream
type Stats struct {
	Running  bool      `json:"running"`
	Frames   uint64    `json:"frames"`
	Encoded  uint64    `json:"encoded"`
	Clients  int       `json:"clients"`
	Last     time.Time `json:"last_update"`
	Started  time.Time `json:"started"`
	Quality  int       `json:"quality"`
	Dropped  uint64    `json:"dropped"`
	FrameFPS float64   `json:"fps"`
}

// MJPEGOutput mirrors the preview as a Motion JPEG stream over HTTP.
// WriteFrame only stores the newest frame; encoding happens on a separate
// goroutine and only while someone is watching.
type MJPEGOutput struct {
	config  Config
	running bool
	mu      sync.RWMutex
	stop    chan struct{}
	done    chan struct{}

	// Newest frame, replaced by WriteFrame
	frameMu      sync.Mutex
	currentFrame *image.RGBA
	lastUpdate   time.Time
	pending      chan struct{}

	// Connected clients
	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	// Stats
	frameCount   uint64
	encodedCount uint64
	droppedCount uint64
	startTime    time.Time
}

// NewMJPEGOutput creates a stopped MJPEG output
func NewMJPEGOutput(config Config) *MJPEGOutput {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = defaultQuality
	}
	return &MJPEGOutput{
		config:  config,
		clients: make(map[chan []byte]struct{}),
		pending: make(chan struct{}, 1),
	}
}

// Start launches the encoder. The HTTP handler is mounted separately via
// HTTPHandler.
func (m *MJPEGOutput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("MJPEG output already running")
	}

	m.running = true
	m.startTime = time.Now()
	m.frameCount = 0
	m.encodedCount = 0
	m.droppedCount = 0
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.encodeLoop(m.stop, m.done)

	logger.WithComponent("mjpeg").Info().
		Int("quality", m.config.Quality).
		Msg("MJPEG output started")
	return nil
}

// Stop shuts down the encoder and disconnects all clients
func (m *MJPEGOutput) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stop)
	done := m.done
	frames := m.frameCount
	m.mu.Unlock()

	<-done

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("mjpeg").Info().
		Uint64("frames", frames).
		Msg("MJPEG output stopped")
	return nil
}

// WriteFrame records frame as the newest one and wakes the encoder
func (m *MJPEGOutput) WriteFrame(frame *image.RGBA) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("MJPEG output not running")
	}
	m.frameCount++
	m.mu.Unlock()

	m.frameMu.Lock()
	m.currentFrame = frame
	m.lastUpdate = time.Now()
	m.frameMu.Unlock()

	select {
	case m.pending <- struct{}{}:
	default:
		// Encoder still busy with an older frame; it picks this one up next
	}
	return nil
}

// Name returns the output type name
func (m *MJPEGOutput) Name() string {
	return "MJPEG HTTP Stream"
}

// IsRunning returns true if the output is active
func (m *MJPEGOutput) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Stats returns counters for the stream
func (m *MJPEGOutput) Stats() Stats {
	m.mu.RLock()
	s := Stats{
		Running: m.running,
		Frames:  m.frameCount,
		Encoded: m.encodedCount,
		Dropped: m.droppedCount,
		Started: m.startTime,
		Quality: m.config.Quality,
	}
	m.mu.RUnlock()

	m.frameMu.Lock()
	s.Last = m.lastUpdate
	m.frameMu.Unlock()

	m.clientsMu.RLock()
	s.Clients = len(m.clients)
	m.clientsMu.RUnlock()

	if s.Running && !s.Started.IsZero() {
		if elapsed := time.Since(s.Started).Seconds(); elapsed > 0 {
			s.FrameFPS = float64(s.Frames) / elapsed
		}
	}
	return s
}

func (m *MJPEGOutput) encodeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-m.pending:
			m.encodeLatest()
		}
	}
}

func (m *MJPEGOutput) encodeLatest() {
	m.clientsMu.RLock()
	watching := len(m.clients)
	m.clientsMu.RUnlock()
	if watching == 0 {
		return
	}

	m.frameMu.Lock()
	frame := m.currentFrame
	m.frameMu.Unlock()
	if frame == nil {
		return
	}

	jpegData, err := EncodeJPEG(frame, m.config.Quality)
	if err != nil {
		logger.WithComponent("mjpeg").Debug().Err(err).Msg("Failed to encode frame")
		return
	}

	var dropped uint64
	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- jpegData:
		default:
			// Client is slow, skip this frame
			dropped++
		}
	}
	m.clientsMu.RUnlock()

	m.mu.Lock()
	m.encodedCount++
	m.droppedCount += dropped
	m.mu.Unlock()
}

// EncodeJPEG encodes frame at the given quality
func EncodeJPEG(frame image.Image, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// HTTPHandler serves the multipart stream. Mount it at /stream.
func (m *MJPEGOutput) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.IsRunning() {
			http.Error(w, "stream not running", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("Connection", "close")

		frameChan := make(chan []byte, 2)

		m.clientsMu.Lock()
		m.clients[frameChan] = struct{}{}
		clientCount := len(m.clients)
		m.clientsMu.Unlock()

		log := logger.WithComponent("mjpeg")
		log.Info().Int("clients", clientCount).Msg("Stream client connected")

		// Send the current frame right away instead of waiting for the next tick
		select {
		case m.pending <- struct{}{}:
		default:
		}

		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, frameChan)
			clientCount := len(m.clients)
			m.clientsMu.Unlock()
			log.Info().Int("clients", clientCount).Msg("Stream client disconnected")
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case jpegData, ok := <-frameChan:
				if !ok {
					return
				}
				if err := writePart(w, jpegData); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		}
	}
}

func writePart(w http.ResponseWriter, jpegData []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
		return err
	}
	if _, err := w.Write(jpegData); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}

// ViewerHandler serves a page that shows the stream full-window
func (m *MJPEGOutput) ViewerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(viewerHTML))
	}
}

const viewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Porthole</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #000;
            overflow: hidden;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
        }
        img {
            width: 100vw;
            height: 100vh;
            object-fit: contain;
            display: block;
            background: #000;
        }
        .status {
            position: fixed;
            bottom: 16px;
            left: 16px;
            padding: 6px 12px;
            background: rgba(40, 40, 40, 0.9);
            color: #ccc;
            border-radius: 14px;
            font: 13px system-ui, -apple-system, sans-serif;
            opacity: 0;
            transition: opacity 0.2s ease;
        }
        body:hover .status { opacity: 1; }
    </style>
</head>
<body>
    <img src="/stream" alt="Porthole preview">
    <div class="status" id="status">connecting</div>
    <script>
        const status = document.getElementById('status');
        const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        const ws = new WebSocket(proto + '//' + location.host + '/api/state/stream');
        ws.onmessage = (e) => {
            const s = JSON.parse(e.data);
            status.textContent = s.phase + (s.target ? ' 0x' + s.target.toString(16) : '');
        };
        ws.onclose = () => { status.textContent = 'disconnected'; };
    </script>
</body>
</html>`
