// Package mp3 adjusts MP3 loudness losslessly by rewriting the global_gain
// field of every granule in every Layer III frame.
package mp3

type mpegVersion int

const (
	mpeg1 mpegVersion = iota
	mpeg2
	mpeg25
)

// frameHeader is a parsed 4-byte Layer III frame header
type frameHeader struct {
	version     mpegVersion
	hasCRC      bool
	bitrateKbps int
	sampleRate  int
	padding     bool
	mono        bool
	frameSize   int
}

var bitratesMPEG1 = [15]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}
var bitratesMPEG2 = [15]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160}

var sampleRates = [3][3]int{
	{44100, 48000, 32000}, // MPEG-1
	{22050, 24000, 16000}, // MPEG-2
	{11025, 12000, 8000},  // MPEG-2.5
}

// parseHeader decodes a Layer III frame header. ok is false for anything
// that is not a usable Layer III frame (free format and reserved values included).
func parseHeader(b []byte) (h frameHeader, ok bool) {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return h, false
	}

	switch (b[1] >> 3) & 0x03 {
	case 0b00:
		h.version = mpeg25
	case 0b10:
		h.version = mpeg2
	case 0b11:
		h.version = mpeg1
	default:
		return h, false
	}

	// Layer bits 0b01 are Layer III
	if (b[1]>>1)&0x03 != 0b01 {
		return h, false
	}

	h.hasCRC = b[1]&0x01 == 0

	bitrateIdx := (b[2] >> 4) & 0x0F
	if bitrateIdx == 0 || bitrateIdx == 15 {
		return h, false
	}
	if h.version == mpeg1 {
		h.bitrateKbps = bitratesMPEG1[bitrateIdx]
	} else {
		h.bitrateKbps = bitratesMPEG2[bitrateIdx]
	}

	srIdx := (b[2] >> 2) & 0x03
	if srIdx == 3 {
		return h, false
	}
	h.sampleRate = sampleRates[h.version][srIdx]
	h.padding = b[2]&0x02 != 0
	h.mono = (b[3]>>6)&0x03 == 0b11

	samples := 1152
	if h.version != mpeg1 {
		samples = 576
	}
	h.frameSize = samples * h.bitrateKbps * 125 / h.sampleRate
	if h.padding {
		h.frameSize++
	}
	return h, true
}

func (h frameHeader) channels() int {
	if h.mono {
		return 1
	}
	return 2
}

func (h frameHeader) granules() int {
	if h.version == mpeg1 {
		return 2
	}
	return 1
}

// sideInfoOffset is the distance from frame start to side information
func (h frameHeader) sideInfoOffset() int {
	if h.hasCRC {
		return 6
	}
	return 4
}

// gainLocation addresses an 8-bit global_gain field that may straddle two bytes
type gainLocation struct {
	byteOffset int
	bitOffset  uint // 0-7, MSB first
}

// gainLocations returns the global_gain position of every granule/channel
// in the frame starting at frameOffset.
//
// Side information layout before the first granule:
//
//	MPEG-1 stereo   main_data_begin 9, private_bits 3, scfsi 8  = 20 bits
//	MPEG-1 mono     main_data_begin 9, private_bits 5, scfsi 4  = 18 bits
//	MPEG-2 stereo   main_data_begin 8, private_bits 2           = 10 bits
//	MPEG-2 mono     main_data_begin 8, private_bits 1           =  9 bits
//
// Each granule/channel block is 59 bits (MPEG-1) or 63 bits (MPEG-2) and
// global_gain follows part2_3_length (12) and big_values (9).
func gainLocations(frameOffset int, h frameHeader) []gainLocation {
	var before, perBlock int
	switch {
	case h.version == mpeg1 && h.mono:
		before, perBlock = 18, 59
	case h.version == mpeg1:
		before, perBlock = 20, 59
	case h.mono:
		before, perBlock = 9, 63
	default:
		before, perBlock = 10, 63
	}

	start := frameOffset + h.sideInfoOffset()
	ch := h.channels()
	locs := make([]gainLocation, 0, h.granules()*ch)
	for gr := 0; gr < h.granules(); gr++ {
		for c := 0; c < ch; c++ {
			bit := before + (gr*ch+c)*perBlock + 21
			locs = append(locs, gainLocation{
				byteOffset: start + bit/8,
				bitOffset:  uint(bit % 8),
			})
		}
	}
	return locs
}

func readGain(data []byte, loc gainLocation) byte {
	i := loc.byteOffset
	if i >= len(data) {
		return 0
	}
	if loc.bitOffset == 0 {
		return data[i]
	}
	if i+1 < len(data) {
		return data[i]<<loc.bitOffset | data[i+1]>>(8-loc.bitOffset)
	}
	return data[i] << loc.bitOffset
}

func writeGain(data []byte, loc gainLocation, v byte) {
	i := loc.byteOffset
	if i >= len(data) {
		return
	}
	if loc.bitOffset == 0 {
		data[i] = v
		return
	}
	shift := loc.bitOffset
	highMask := byte(0xFF) << (8 - shift)
	data[i] = data[i]&highMask | v>>shift
	if i+1 < len(data) {
		lowMask := byte(0xFF) >> shift
		data[i+1] = data[i+1]&lowMask | v<<(8-shift)
	}
}

// skipID3v2 returns the offset of the first byte after a leading ID3v2 tag
func skipID3v2(data []byte) int {
	if len(data) < 10 || string(data[:3]) != "ID3" {
		return 0
	}
	size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
	end := 10 + size
	// Footer flag adds another 10 bytes
	if data[5]&0x10 != 0 {
		end += 10
	}
	return end
}
