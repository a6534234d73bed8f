package cfg

const (
	VERSION = "0.1.0"

	DEFAULT_LOG = "/tmp/tcast.log"

	// Playback
	FPS_NOISE_FLOOR = 0.06 // output deltas below this are ignored when inferring fps. Unit in seconds

	// Render
	DEFAULT_FONT_SIZE = 0 // 0 selects the 7x13 bitmap face, anything else is a point size for Go Mono
	DEFAULT_FONT_DPI  = 72

	// Encoder
	FRAME_NAME_FORMAT = "%09d.png" // file name and ffmpeg input pattern of frames: 000000000.png, 000000001.png ...
	FRAME_GLOB        = "*.png"
	ENCODER_PIX_FMT   = "yuv420p"

	// Server
	SERVER_CLEAN_INTERVAL     = 60        // Scan for expired renders interval. Unit in seconds
	SERVER_CLEAN_THRESHOLD    = 60 * 60   // Finished renders older than this get their video removed. Unit in seconds
	SERVER_READ_BUFFER_SIZE   = 1024      // server websocket read buffer size
	SERVER_WRITE_BBUFFER_SIZE = 1024      // server websocket write buffer size
	SERVER_MAX_CAST_SIZE      = 32 << 20  // largest accepted cast upload. Unit in bytes
	SERVER_RENDER_RATE        = 1         // accepted render requests per second
	SERVER_RENDER_BURST       = 5         // render requests allowed in a burst
	SERVER_PROGRESS_BUFFER    = 64        // progress messages buffered per subscriber
	SERVER_RENDER_FORMAT      = "mp4"     // default output format of the render API
	SERVER_CLOSE_GRACE_PERIOD = 2         // Time to wait before force closing a websocket. Unit in seconds
)
