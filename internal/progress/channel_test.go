package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/renovatio/renovatio/pkg/sdk"
)

func TestTryRecvStates(t *testing.T) {
	ch := New()
	tx := ch.Sender()

	if _, status := ch.TryRecv(); status != Empty {
		t.Fatalf("expected Empty with live sender, got %s", status)
	}

	tx.Send(sdk.Progress{Provider: "brew", Percent: 10})
	tx.Close()

	p, status := ch.TryRecv()
	if status != Received || p.Percent != 10 {
		t.Fatalf("expected queued record before disconnect, got %s %+v", status, p)
	}
	if _, status := ch.TryRecv(); status != Disconnected {
		t.Fatalf("expected Disconnected after drain, got %s", status)
	}
}

func TestNoSendersIsDisconnected(t *testing.T) {
	if _, status := New().TryRecv(); status != Disconnected {
		t.Fatalf("expected Disconnected, got %s", status)
	}
}

func TestSendAfterCloseIsRejected(t *testing.T) {
	ch := New()
	tx := ch.Sender()
	tx.Close()
	tx.Close()

	if tx.Send(sdk.Progress{Percent: 1}) {
		t.Fatal("expected send on closed sender to fail")
	}
	if _, status := ch.TryRecv(); status != Disconnected {
		t.Fatalf("expected nothing queued, got %s", status)
	}
}

func TestSendAfterReceiverCloseIsRejected(t *testing.T) {
	ch := New()
	tx := ch.Sender()
	ch.Close()

	if tx.Send(sdk.Progress{Percent: 1}) {
		t.Fatal("expected send after receiver close to fail")
	}
}

func TestSendClonesOutput(t *testing.T) {
	ch := New()
	tx := ch.Sender()
	defer tx.Close()

	p := sdk.Progress{Stdout: sdk.StringPtr("first")}
	tx.Send(p)
	*p.Stdout = "mutated"

	got, _ := ch.TryRecv()
	if *got.Stdout != "first" {
		t.Fatalf("expected queued record to be isolated from sender, got %q", *got.Stdout)
	}
}

func TestFIFOPerProducerWithManyProducers(t *testing.T) {
	ch := New()
	const producers, perProducer = 4, 200

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		tx := ch.Sender()
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			defer tx.Close()
			name := string(rune('a' + id))
			for n := 0; n < perProducer; n++ {
				tx.Send(sdk.Progress{Provider: name, Percent: n})
			}
		}(i)
	}

	last := map[string]int{}
	count := 0
	timeout := time.After(5 * time.Second)
	for {
		p, status := ch.TryRecv()
		if status == Disconnected {
			break
		}
		if status == Empty {
			select {
			case <-ch.Notify():
			case <-timeout:
				t.Fatal("timed out waiting for producers")
			}
			continue
		}
		if prev, ok := last[p.Provider]; ok && p.Percent != prev+1 {
			t.Fatalf("producer %s out of order: %d after %d", p.Provider, p.Percent, prev)
		}
		last[p.Provider] = p.Percent
		count++
	}
	wg.Wait()

	if count != producers*perProducer {
		t.Fatalf("expected %d records, got %d", producers*perProducer, count)
	}
}
