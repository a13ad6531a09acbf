// Package supervise controls runit and daemontools supervised services
// through the files their supervisor maintains, without shelling out to
// sv or svc.
//
// Every service directory holds a control FIFO and a binary status record:
//
//	<base>/<service>/supervise/control   single-byte commands
//	<base>/<service>/supervise/status    18 or 20 byte status record
//	<base>/<service>/down                marker: service is normally down
//
// A Service binds those paths once:
//
//	svc, err := supervise.New("myapp", supervise.WithBaseDir("/etc/service"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start the service
//	err = svc.Up(ctx)
//
//	// Read its status
//	rec, err := svc.Status(ctx)
//	if pid, ok := rec.PID(); ok {
//	    fmt.Printf("%s, pid %d, up %s\n", rec.State(), pid, rec.Uptime())
//	}
//
// # Status records
//
// DecodeStatus turns the raw record into a Record. The record format is
// reproduced exactly as the supervisor writes it, quirks included: the
// timestamp carries EpochBias, the pid is stored in the reverse byte order
// of every other field, and the 18 byte daemontools record is told apart
// from the 20 byte runit record by length alone.
//
// # Commands
//
// Each Operation maps to one control byte. Send and the per-command
// methods open the FIFO, write that byte and close it again; SendByte
// forwards any byte unvalidated. A successful write means the byte was
// delivered, not that the supervisor acted on it.
//
// # Manager for Bulk Operations
//
// Manager runs an operation across many services with bounded
// concurrency and a per-operation timeout, collecting failures into a
// *MultiError. It is optional; everything it does can be done with
// Service values directly.
//
//	manager := supervise.NewManager(
//	    supervise.WithConcurrency(5),
//	    supervise.WithTimeout(10 * time.Second),
//	)
//	err = manager.Up(ctx, "web", "db", "cache")
package supervise
