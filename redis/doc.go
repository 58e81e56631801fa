// Package redis is an asynchronous, single-socket client for RESP-family
// (Redis-compatible) servers. An Engine owns one connection and a loop
// goroutine that drives it; callers submit commands from any goroutine
// and receive replies through callbacks, a blocking sync bridge
// (CommandSync), or a dedicated pub/sub Subscriber.
//
// A typical one-shot command:
//
//	eng := redis.NewEngine("localhost:6379")
//	if !eng.Connect(context.Background()) {
//		log.Fatal("connect failed")
//	}
//	defer eng.Disconnect()
//
//	eng.Command([][]byte{[]byte("GET"), []byte("foo")}, redis.ShapeString, func(c *redis.Command) {
//		if c.Status() == redis.Ok {
//			fmt.Println(string(c.Reply().([]byte)))
//		}
//	})
//
// See SPEC_FULL.md and DESIGN.md for the full module layout and the
// rationale behind it.
package redis
