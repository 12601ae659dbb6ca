package ignition

// RpcServerParams describes the server being created: its service name and
// ordered method name list.
type RpcServerParams struct {
	ServiceName string
	MethodNames []string
}

// RpcClientCreate implements the rpc_client_create syscall.
func (p *Process) RpcClientCreate(serviceName string) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rpcClients.Insert(rpcClientSlot{serviceName: serviceName})
}

// RpcClientWaitHealthy delegates to the global service registry, reporting
// true if a server for this client's service name is registered now;
// otherwise the task is woken once one registers.
func (p *Process) RpcClientWaitHealthy(taskID TaskID, rpcClient uint32) (ready bool, err error) {
	p.mu.Lock()
	slot, ok := p.rpcClients.TryGet(rpcClient)
	var serviceName string
	if ok {
		serviceName = slot.serviceName
	}
	p.mu.Unlock()
	if !ok {
		return true, NewTrapError("bad rpc_client handle %d", rpcClient)
	}
	return GlobalServiceRegistry().WaitForServer(p, taskID, serviceName), nil
}

// RpcClientRequest creates the request and response pipes, wires up I/O
// objects in both the client's and the chosen server's process, and queues
// RpcMetadata on the server for its next get_request.
//
// Locking discipline: the client's slab lock is taken and released before
// the server's, so a request where client == server never recursively
// acquires the same mutex.
func (p *Process) RpcClientRequest(rpcClient uint32, methodName string) (requestIO, responseIO IoHandle, err error) {
	p.mu.Lock()
	slotPtr, ok := p.rpcClients.TryGet(rpcClient)
	var serviceName string
	if ok {
		serviceName = slotPtr.serviceName
	}
	p.mu.Unlock()
	if !ok {
		return 0, 0, NewTrapError("bad rpc_client handle %d", rpcClient)
	}

	requestPipe := newPipe()
	responsePipe := newPipe()

	p.mu.Lock()
	requestIO = p.newIoWriterLocked(requestPipe)
	responseIO = p.newIoReaderLocked(responsePipe)
	p.mu.Unlock()

	ref := GlobalServiceRegistry().PickServer(serviceName)
	server := ref.Process

	server.mu.Lock()
	serverRequestIO := server.newIoReaderLocked(requestPipe)
	serverResponseIO := server.newIoWriterLocked(responsePipe)

	slot, ok := server.rpcServers.TryGet(ref.RpcServer)
	if !ok {
		server.mu.Unlock()
		return 0, 0, NewTrapError("rpc server %d no longer exists", ref.RpcServer)
	}
	methodIndex, ok := (*slot).methodIndex[methodName]
	if !ok {
		server.mu.Unlock()
		return 0, 0, NewTrapError("unregistered rpc method %q", methodName)
	}

	meta := RpcMetadata{MethodIndex: methodIndex, RequestIO: serverRequestIO, ResponseIO: serverResponseIO}
	(*slot).requestQueue = append((*slot).requestQueue, meta)
	waiters := (*slot).waitingTasks
	(*slot).waitingTasks = nil
	server.mu.Unlock()

	for t := range waiters {
		server.enqueueWake(t, 0)
	}

	return requestIO, responseIO, nil
}

// newIoReaderLocked/newIoWriterLocked are newIoReader/newIoWriter variants
// for callers that already hold p.mu, used by RpcClientRequest to avoid
// acquiring the same process's lock twice when client == server.
func (p *Process) newIoReaderLocked(pp *pipe) IoHandle {
	return IoHandle(p.ioObjects.Insert(readerObject(pp)))
}

func (p *Process) newIoWriterLocked(pp *pipe) IoHandle {
	return IoHandle(p.ioObjects.Insert(writerObject(pp)))
}

// RpcServerCreate registers a fresh RpcServer slot and publishes it to the
// global service registry, waking any tasks blocked on wait_healthy for
// its name.
func (p *Process) RpcServerCreate(params RpcServerParams) uint32 {
	slot := &rpcServerSlot{
		serviceName: params.ServiceName,
		methodNames: append([]string(nil), params.MethodNames...),
		methodIndex: make(map[string]uint32, len(params.MethodNames)),
	}
	for i, name := range slot.methodNames {
		slot.methodIndex[name] = uint32(i)
	}

	p.mu.Lock()
	handle := p.rpcServers.Insert(slot)
	p.mu.Unlock()

	GlobalServiceRegistry().Register(params.ServiceName, RpcServerRef{Process: p, RpcServer: handle})
	return handle
}

// RpcServerGetRequest pops the oldest queued request if one is waiting;
// otherwise it records taskID as a waiter, to be woken when a request is
// queued.
func (p *Process) RpcServerGetRequest(taskID TaskID, rpcServer uint32) (meta RpcMetadata, ready bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.rpcServers.TryGet(rpcServer)
	if !ok {
		return RpcMetadata{}, true, NewTrapError("bad rpc_server handle %d", rpcServer)
	}

	if len((*slot).requestQueue) > 0 {
		meta = (*slot).requestQueue[0]
		(*slot).requestQueue = (*slot).requestQueue[1:]
		return meta, true, nil
	}

	if (*slot).waitingTasks == nil {
		(*slot).waitingTasks = make(map[TaskID]struct{})
	}
	(*slot).waitingTasks[taskID] = struct{}{}
	return RpcMetadata{}, false, nil
}
