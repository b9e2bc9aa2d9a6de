// Package stream drives a frame filter over a raw video byte stream.
//
// Frames have no header: the stream is a concatenation of equally sized
// frames. A Pipeline keeps a ring of frame buffers allocated once, reads
// until the ring holds as many unwritten frames as it has slots, filters
// each frame in place right after reading it, then writes every waiting
// frame in arrival order.
//
// Reaching end of input at a frame boundary ends the run normally. Input
// that ends inside a frame drops the partial frame after every complete
// frame has been written; the dropped byte count is reported in Stats and,
// with Config.Strict, the run returns ErrTruncatedFrame.
package stream
