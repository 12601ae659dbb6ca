package ignition

// IoHandle is the small per-process integer naming an ioObject. Handles
// are reusable after io_close.
type IoHandle uint32

// ioObject wraps exactly one side of a pipe: either its reader or its
// writer endpoint, never both.
type ioObject struct {
	reader *pipe // non-nil iff this handle is a reader endpoint
	writer *pipe // non-nil iff this handle is a writer endpoint
}

func readerObject(p *pipe) ioObject { return ioObject{reader: p} }
func writerObject(p *pipe) ioObject { return ioObject{writer: p} }

// read dispatches to the wrapped reader endpoint. A direction mismatch (a
// read against a writer handle) is a TrapError.
func (o ioObject) read(w waker, taskID TaskID, dst []byte) (n uint32, ready bool, err error) {
	if o.reader == nil {
		return 0, true, NewTrapError("io handle is not a reader")
	}
	n, ready = o.reader.read(w, taskID, dst)
	return n, ready, nil
}

func (o ioObject) write(w waker, taskID TaskID, src []byte) (n uint32, ready bool, err error) {
	if o.writer == nil {
		return 0, true, NewTrapError("io handle is not a writer")
	}
	n, ready, err = o.writer.write(w, taskID, src)
	if err != nil {
		return n, true, NewTrapError("write to closed pipe: %v", err)
	}
	return n, ready, nil
}

func (o ioObject) close() {
	if o.reader != nil {
		o.reader.close()
	}
	if o.writer != nil {
		o.writer.close()
	}
}
