package texture

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	vk "github.com/vulkan-go/vulkan"
)

// LoadHDR implements load_hdr(path): decodes a Radiance .hdr (RGBE) file and
// uploads it as RGBA32_SFLOAT. golang.org/x/image and disintegration/imaging
// have no Radiance decoder, so this is the one stdlib-adjacent gap in the
// store (documented in the grounding ledger) — the RGBE run-length format is
// small enough to read by hand the way the original engine's stb_image-based
// loader does.
func (s *Store) LoadHDR(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load_hdr: missing file %q: %w", path, err)
	}
	defer f.Close()

	width, height, rgbe, err := decodeRadianceHDR(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load_hdr: decoding %q: %w", path, err)
	}

	pixels := make([]byte, width*height*16)
	for i := 0; i < width*height; i++ {
		r, g, b, e := rgbe[i*4], rgbe[i*4+1], rgbe[i*4+2], rgbe[i*4+3]
		rf, gf, bf := rgbeToFloat(r, g, b, e)
		off := i * 16
		putFloat32(pixels[off:], rf)
		putFloat32(pixels[off+4:], gf)
		putFloat32(pixels[off+8:], bf)
		putFloat32(pixels[off+12:], 1.0)
	}

	return s.uploadLayers(pixels, uint32(width), uint32(height), 1, vk.FormatR32g32b32a32Sfloat, vk.ImageViewType2d)
}

func rgbeToFloat(r, g, b, e byte) (float32, float32, float32) {
	if e == 0 {
		return 0, 0, 0
	}
	f := math.Ldexp(1.0, int(e)-(128+8))
	return float32(float64(r) * f), float32(float64(g) * f), float32(float64(b) * f)
}

func putFloat32(dst []byte, v float32) {
	bits := math.Float32bits(v)
	dst[0] = byte(bits)
	dst[1] = byte(bits >> 8)
	dst[2] = byte(bits >> 16)
	dst[3] = byte(bits >> 24)
}

// decodeRadianceHDR reads the minimal Radiance RGBE header plus the
// new-style adaptive run-length-encoded scanlines.
func decodeRadianceHDR(r *bufio.Reader) (width, height int, rgbe []byte, err error) {
	line, err := r.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "#?") {
		return 0, 0, nil, fmt.Errorf("not a Radiance HDR file")
	}

	for {
		line, err = r.ReadString('\n')
		if err != nil {
			return 0, 0, nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
	}

	dims, err := r.ReadString('\n')
	if err != nil {
		return 0, 0, nil, err
	}
	fields := strings.Fields(dims)
	if len(fields) != 4 || fields[0] != "-Y" || fields[2] != "+X" {
		return 0, 0, nil, fmt.Errorf("unsupported resolution line %q", dims)
	}
	height, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, nil, err
	}
	width, err = strconv.Atoi(fields[3])
	if err != nil {
		return 0, 0, nil, err
	}

	rgbe = make([]byte, width*height*4)
	scanline := make([]byte, width*4)

	for y := 0; y < height; y++ {
		if err := readScanline(r, scanline, width); err != nil {
			return 0, 0, nil, err
		}
		copy(rgbe[y*width*4:], scanline)
	}
	return width, height, rgbe, nil
}

func readScanline(r *bufio.Reader, scanline []byte, width int) error {
	header := make([]byte, 4)
	if _, err := fullRead(r, header); err != nil {
		return err
	}

	if width < 8 || width > 0x7fff || header[0] != 2 || header[1] != 2 || (int(header[2])<<8|int(header[3])) != width {
		// Old-style flat RGBE scanline (no RLE); header bytes are the first pixel.
		copy(scanline, header)
		if _, err := fullRead(r, scanline[4:]); err != nil {
			return err
		}
		return nil
	}

	for c := 0; c < 4; c++ {
		i := 0
		for i < width {
			count, err := r.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count) - 128
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				for j := 0; j < n; j++ {
					scanline[(i+j)*4+c] = v
				}
				i += n
			} else {
				n := int(count)
				for j := 0; j < n; j++ {
					v, err := r.ReadByte()
					if err != nil {
						return err
					}
					scanline[(i+j)*4+c] = v
				}
				i += n
			}
		}
	}
	return nil
}

func fullRead(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
