package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// MoveBooks runs a relocation batch on the daemon.
func (c *Client) MoveBooks(req MoveBooksRequest) (*MoveBooksResponse, error) {
	var resp MoveBooksResponse
	if err := c.call("MoveBooks", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NormalizeBook renames one book on the daemon.
func (c *Client) NormalizeBook(bookID int64) (*NormalizeBookResponse, error) {
	var resp NormalizeBookResponse
	if err := c.call("NormalizeBook", NormalizeBookRequest{BookID: bookID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reconcile runs a reconciliation pass on the daemon.
func (c *Client) Reconcile() (*ReconcileResponse, error) {
	var resp ReconcileResponse
	if err := c.call("Reconcile", ReconcileRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WatchLibrary asks the daemon to monitor a library added after startup.
func (c *Client) WatchLibrary(libraryID int64) (*WatchLibraryResponse, error) {
	var resp WatchLibraryResponse
	if err := c.call("WatchLibrary", WatchLibraryRequest{LibraryID: libraryID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
