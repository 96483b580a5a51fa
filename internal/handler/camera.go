package handler

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"privacyblur/internal/config"
	"privacyblur/internal/logger"
)

// maxUploadSize bounds a single uploaded frame.
const maxUploadSize = 8 << 20

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// FrameSink accepts encoded camera frames.
type FrameSink interface {
	HandleCameraImage(image []byte, camera string)
}

// frameAssembler rebuilds JPEG frames from UDP packets, one buffer per camera.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// add appends a packet and returns the completed frame, if any.
func (a *frameAssembler) add(camera string, data []byte) []byte {
	imgBuffer, ok := a.buffers[camera]
	if !ok {
		imgBuffer = new(bytes.Buffer)
		a.buffers[camera] = imgBuffer
	}

	if bytes.HasPrefix(data, jpegHeader) {
		imgBuffer.Reset()
	} else if imgBuffer.Len() == 0 {
		// middle of a frame whose start was lost
		return nil
	}
	imgBuffer.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil
	}
	fullFrame := make([]byte, imgBuffer.Len())
	copy(fullFrame, imgBuffer.Bytes())
	imgBuffer.Reset()
	return fullFrame
}

// cameraName maps the sender address to its configured display name.
func cameraName(config *config.Config, remote string) string {
	ip := remote
	if host, _, err := net.SplitHostPort(remote); err == nil {
		ip = host
	}
	if name, ok := config.CameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// UDPCameraHandler listens for UDP packets from cameras, reconstructs JPEG frames,
// and forwards complete frames to the sink until ctx is done.
func UDPCameraHandler(ctx context.Context, sink FrameSink, logger *logger.Logger, config *config.Config) {
	port := strconv.Itoa(config.CamerasPort)

	addr, err := net.ResolveUDPAddr("udp", ":"+port)
	if err != nil {
		logger.Error("Failed to resolve UDP address: %v", err)
		return
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		logger.Error("Failed to listen on UDP port %s: %v", port, err)
		return
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP Camera handler started on port %s", port)
	buffer := make([]byte, 65535)
	assembler := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("UDP Camera handler stopped")
				return
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		camera := cameraName(config, remoteAddr.String())
		if frame := assembler.add(camera, buffer[:n]); frame != nil {
			sink.HandleCameraImage(frame, camera)
		}
	}
}

// UploadFrameHandler handles POST /camera/upload?camera=NAME with a JPEG body.
func UploadFrameHandler(sink FrameSink, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		camera := strings.TrimSpace(r.URL.Query().Get("camera"))
		if camera == "" {
			http.Error(w, "Missing camera parameter", http.StatusBadRequest)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
		if err != nil {
			logger.Warning("Rejected upload from %s: %v", camera, err)
			http.Error(w, "Frame too large", http.StatusRequestEntityTooLarge)
			return
		}
		if !bytes.HasPrefix(data, jpegHeader) {
			http.Error(w, "Body is not a JPEG frame", http.StatusBadRequest)
			return
		}

		sink.HandleCameraImage(data, camera)
		w.WriteHeader(http.StatusAccepted)
	}
}
