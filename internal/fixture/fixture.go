// Package fixture builds small media files for tests.
package fixture

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"time"
)

const mp4EpochOffset = 2082844800

type ZipEntry struct {
	Name     string
	Body     []byte
	Modified time.Time
}

// Zip 返回包含给定条目的 zip 数据
func Zip(entries ...ZipEntry) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: e.Modified})
		if err != nil {
			panic(err)
		}
		if _, err := f.Write(e.Body); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG 返回带有 EXIF DateTime 的最小 JPEG
func JPEG(taken time.Time) []byte {
	val := append([]byte(taken.Format("2006:01:02 15:04:05")), 0)

	var tiff bytes.Buffer
	le := func(v any) { binary.Write(&tiff, binary.LittleEndian, v) }
	tiff.WriteString("II*\x00")
	le(uint32(8))      // IFD0
	le(uint16(1))      // 条目数
	le(uint16(0x0132)) // DateTime
	le(uint16(2))      // ASCII
	le(uint32(len(val)))
	le(uint32(26))
	le(uint32(0))
	tiff.Write(val)

	app1 := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(app1)+2))
	out.Write(app1)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

func box(typ string, payload []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint32(8+len(payload)))
	b.WriteString(typ)
	b.Write(payload)
	return b.Bytes()
}

// MP4 返回 moov/mvhd 中带有创建时间的最小 MP4
func MP4(created time.Time) []byte {
	var mvhd bytes.Buffer
	be := func(v any) { binary.Write(&mvhd, binary.BigEndian, v) }
	ct := uint32(created.Unix() + mp4EpochOffset)
	be([4]byte{}) // version 0 + flags
	be(ct)
	be(ct)
	be(uint32(1000))
	be(uint32(0))
	be(int32(0x00010000))
	be(int16(0x0100))
	be(int16(0))
	be([2]uint32{})
	be([9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000})
	be([6]int32{})
	be(uint32(2))

	ftyp := box("ftyp", []byte("isom\x00\x00\x02\x00isommp42"))
	return append(ftyp, box("moov", box("mvhd", mvhd.Bytes()))...)
}

// MP3 返回带有 ID3v2.3 标签的数据，空字段不写入
func MP3(artist, albumArtist, album string) []byte {
	var frames bytes.Buffer
	frame := func(id, text string) {
		if text == "" {
			return
		}
		data := append([]byte{0}, []byte(text)...)
		frames.WriteString(id)
		binary.Write(&frames, binary.BigEndian, uint32(len(data)))
		frames.Write([]byte{0, 0})
		frames.Write(data)
	}
	frame("TPE1", artist)
	frame("TPE2", albumArtist)
	frame("TALB", album)

	size := frames.Len()
	var out bytes.Buffer
	out.WriteString("ID3")
	out.Write([]byte{3, 0, 0})
	out.Write([]byte{byte(size >> 21 & 0x7f), byte(size >> 14 & 0x7f), byte(size >> 7 & 0x7f), byte(size & 0x7f)})
	out.Write(frames.Bytes())
	out.Write(bytes.Repeat([]byte{0xFF, 0xFB, 0x90, 0x00}, 8))
	return out.Bytes()
}
