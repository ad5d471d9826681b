package av

// VideoFrame holds decoded pixel planes. Unused planes are nil with a zero
// stride.
type VideoFrame struct {
	Width   int
	Height  int
	Format  PixelFormat
	Planes  [3][]byte
	Strides [3]int
}

// Alloc sizes the planes for the given format and dimensions, reusing the
// existing backing arrays when they are large enough.
func (v *VideoFrame) Alloc(format PixelFormat, width, height int) {
	v.Format = format
	v.Width = width
	v.Height = height
	for i := 0; i < 3; i++ {
		if i >= format.Planes() {
			v.Planes[i] = nil
			v.Strides[i] = 0
			continue
		}
		stride, rows := format.PlaneSize(i, width, height)
		size := stride * rows
		if cap(v.Planes[i]) < size {
			v.Planes[i] = make([]byte, size)
		} else {
			v.Planes[i] = v.Planes[i][:size]
		}
		v.Strides[i] = stride
	}
}

// AudioFrame holds decoded samples in one contiguous buffer. For planar
// formats the channel planes follow each other, Samples*BytesPerSample bytes
// each.
type AudioFrame struct {
	SampleRate int
	Channels   int
	Samples    int
	Format     SampleFormat
	Data       []byte
}

// BytesPerSample returns the size of one sample of one channel.
func (a *AudioFrame) BytesPerSample() int {
	return a.Format.BytesPerSample()
}

// Alloc sizes Data for n samples per channel.
func (a *AudioFrame) Alloc(format SampleFormat, rate, channels, n int) {
	a.Format = format
	a.SampleRate = rate
	a.Channels = channels
	a.Samples = n
	size := n * channels * format.BytesPerSample()
	if cap(a.Data) < size {
		a.Data = make([]byte, size)
	} else {
		a.Data = a.Data[:size]
	}
}

// Plane returns channel ch of a planar frame, or all data for packed frames.
func (a *AudioFrame) Plane(ch int) []byte {
	if !a.Format.Planar() {
		return a.Data
	}
	size := a.Samples * a.BytesPerSample()
	return a.Data[ch*size : (ch+1)*size]
}

// Frame is a unit of raw decoded media. A Frame returned by a decode session
// is owned by that session and is overwritten by its next decode call; use
// Clone to retain it.
type Frame struct {
	Type        MediaType
	StreamIndex int
	PTS         int64
	TimeBase    Rational
	Key         bool

	Video VideoFrame
	Audio AudioFrame
}

// HasPTS reports whether the frame carries a presentation timestamp.
func (f *Frame) HasPTS() bool {
	return f.PTS != NoPTS
}

// Clone returns a deep copy that is safe to keep across decode calls.
func (f *Frame) Clone() *Frame {
	c := *f
	for i := range f.Video.Planes {
		if f.Video.Planes[i] != nil {
			c.Video.Planes[i] = append([]byte(nil), f.Video.Planes[i]...)
		}
	}
	if f.Audio.Data != nil {
		c.Audio.Data = append([]byte(nil), f.Audio.Data...)
	}
	return &c
}
