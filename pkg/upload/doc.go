// Package upload delivers finished audio recordings to a collector endpoint.
//
// A recording is wrapped in a Payload and sent as a single-part
// multipart/form-data POST. Every call performs at most one HTTP exchange and
// reports either a Result (the file was delivered) or an *Error describing why
// it was not. The client never retries; callers decide based on
// (*Error).Retryable.
//
// # Usage
//
//	client, err := upload.NewClient(upload.Config{
//	    Destination: "https://collector.example.com/upload",
//	    Timeout:     30 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//
//	p, err := upload.OpenPayload("recording.m4a", "")
//	if err != nil {
//	    return err
//	}
//
//	res, err := client.Upload(ctx, p)
//	var uerr *upload.Error
//	if errors.As(err, &uerr) && uerr.Retryable() {
//	    // schedule another attempt
//	}
//
// The wire format is:
//
//	POST <destination>
//	Content-Type: multipart/form-data; boundary=<boundary>
//
//	--<boundary>
//	Content-Disposition: form-data; name="file"; filename="<filename>"
//	Content-Type: <mimeType>
//
//	<raw bytes>
//	--<boundary>--
//
// A Client holds no per-call state and is safe for concurrent use.
package upload
