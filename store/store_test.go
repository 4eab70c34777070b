package store

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/iov-one/paychan"
	"github.com/iov-one/paychan/crypto"
	"github.com/iov-one/paychan/errors"
	. "github.com/smartystreets/goconvey/convey"
	dbm "github.com/tendermint/tendermint/libs/db"
	"github.com/tendermint/tendermint/libs/log"
)

func newElement(t testing.TB, id paychan.ChannelID, seed byte) *Element {
	t.Helper()
	channelKey, err := crypto.KeyPairFromSeed(bytes.Repeat([]byte{seed}, 32))
	if err != nil {
		t.Fatalf("channel key: %s", err)
	}
	receiverKey, err := crypto.KeyPairFromSeed(bytes.Repeat([]byte{seed + 1}, 32))
	if err != nil {
		t.Fatalf("receiver key: %s", err)
	}
	return &Element{
		ID: id,
		Channel: paychan.Channel{
			Sender:       paychan.Account{AccountID: "alice.near", PublicKey: channelKey.PublicKey()},
			Receiver:     paychan.Account{AccountID: "bob.near", PublicKey: receiverKey.PublicKey()},
			AddedBalance: paychan.MustParseNear("1"),
		},
		SenderKeyPair:      channelKey,
		LatestSpentBalance: paychan.MustParseNear("0.1"),
	}
}

func TestStore(t *testing.T) {
	Convey("Given an empty store", t, func() {
		var logs bytes.Buffer
		db := dbm.NewMemDB()
		s := New(db, "", log.NewTMLogger(log.NewSyncWriter(&logs)))

		Convey("A missing channel is not found", func() {
			_, err := s.Get("c1")
			So(errors.ErrNotFound.Is(err), ShouldBeTrue)

			ok, err := s.Exists("c1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			So(s.Delete("c1"), ShouldBeNil)
		})

		Convey("A record is stored under the prefixed key", func() {
			el := newElement(t, "c1", 1)
			So(s.Create(el), ShouldBeNil)
			So(db.Has([]byte("payment-channel-storage_c1")), ShouldBeTrue)

			Convey("with integers kept as decimal strings", func() {
				var doc map[string]interface{}
				So(json.Unmarshal(db.Get([]byte("payment-channel-storage_c1")), &doc), ShouldBeNil)
				So(doc["latest_spent_balance"], ShouldEqual, "100000000000000000000000")
				channel := doc["channel"].(map[string]interface{})
				So(channel["added_balance"], ShouldEqual, "1000000000000000000000000")
				So(doc["senderKeyPair"], ShouldEqual, el.SenderKeyPair.String())
			})

			Convey("and read back unchanged", func() {
				got, err := s.Get("c1")
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, el.ID)
				So(got.Channel.Sender.PublicKey.Equal(el.Channel.Sender.PublicKey), ShouldBeTrue)
				So(got.LatestSpentBalance.Cmp(el.LatestSpentBalance), ShouldEqual, 0)
				So(got.SenderKeyPair.String(), ShouldEqual, el.SenderKeyPair.String())
			})

			Convey("Create overwrites the existing record", func() {
				el.LatestSpentBalance = paychan.MustParseNear("0.5")
				So(s.Create(el), ShouldBeNil)
				got, err := s.Get("c1")
				So(err, ShouldBeNil)
				So(got.LatestSpentBalance.Near(), ShouldEqual, "0.5")
			})

			Convey("Delete removes it", func() {
				So(s.Delete("c1"), ShouldBeNil)
				ok, err := s.Exists("c1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("A receiver record has no key", func() {
			el := newElement(t, "c2", 3)
			el.SenderKeyPair = nil
			So(s.Create(el), ShouldBeNil)
			got, err := s.Get("c2")
			So(err, ShouldBeNil)
			So(got.IsSender(), ShouldBeFalse)
		})

		Convey("An inconsistent record is rejected", func() {
			el := newElement(t, "c3", 5)
			other, err := crypto.GenerateKeyPair(crypto.ED25519)
			So(err, ShouldBeNil)
			el.SenderKeyPair = other
			err = s.Create(el)
			So(errors.ErrValidation.Is(err), ShouldBeTrue)
			So(errors.FieldErrors(err, "senderKeyPair"), ShouldHaveLength, 1)
		})

		Convey("A closed channel keeps its key for audit", func() {
			el := newElement(t, "c4", 7)
			el.Channel.Sender = paychan.BurnedAccount()
			el.Channel.Receiver = paychan.BurnedAccount()
			So(s.Create(el), ShouldBeNil)
		})

		Convey("With a corrupted record next to valid ones", func() {
			So(s.Create(newElement(t, "a", 1)), ShouldBeNil)
			So(s.Create(newElement(t, "b", 3)), ShouldBeNil)
			db.Set([]byte("payment-channel-storage_broken"), []byte(`{"id": "broken", "channel": 4}`))
			db.Set([]byte("other-prefix_x"), []byte(`not even json`))

			Convey("Get reports a validation failure", func() {
				_, err := s.Get("broken")
				So(errors.ErrValidation.Is(err), ShouldBeTrue)
			})

			Convey("Export skips it and logs the problem", func() {
				snap, err := s.Export()
				So(err, ShouldBeNil)
				So(snap.IDs(), ShouldResemble, []paychan.ChannelID{"a", "b"})
				So(logs.String(), ShouldContainSubstring, "skipping corrupted channel record")
				So(logs.String(), ShouldContainSubstring, "payment-channel-storage_broken")
			})
		})
	})
}

func TestExportImport(t *testing.T) {
	Convey("Given a store with records", t, func() {
		s := New(dbm.NewMemDB(), "wallet", nil)
		ids := []paychan.ChannelID{"c1", "c2", "c3"}
		for i, id := range ids {
			So(s.Create(newElement(t, id, byte(i*2+1))), ShouldBeNil)
		}

		snap, err := s.Export()
		So(err, ShouldBeNil)
		So(snap, ShouldHaveLength, 3)

		Convey("Importing the export leaves the store unchanged", func() {
			before := make(map[paychan.ChannelID]string)
			for _, id := range ids {
				el, err := s.Get(id)
				So(err, ShouldBeNil)
				raw, _ := json.Marshal(el)
				before[id] = string(raw)
			}

			So(s.Import(snap), ShouldBeNil)

			for _, id := range ids {
				el, err := s.Get(id)
				So(err, ShouldBeNil)
				raw, _ := json.Marshal(el)
				So(string(raw), ShouldEqual, before[id])
			}
			again, err := s.Export()
			So(err, ShouldBeNil)
			So(again.IDs(), ShouldResemble, ids)
		})

		Convey("A backup can be moved to another store", func() {
			raw, err := json.Marshal(snap)
			So(err, ShouldBeNil)
			parsed, err := ParseSnapshot(raw)
			So(err, ShouldBeNil)

			other := New(dbm.NewMemDB(), "", nil)
			So(other.Import(parsed), ShouldBeNil)
			el, err := other.Get("c2")
			So(err, ShouldBeNil)
			So(el.SenderKeyPair.String(), ShouldEqual, snap["c2"].SenderKeyPair.String())
		})

		Convey("A malformed batch is rejected as a whole", func() {
			bad := Snapshot{
				"c9": newElement(t, "c9", 11),
				"c1": newElement(t, "not-c1", 13),
			}
			err := s.Import(bad)
			So(errors.ErrValidation.Is(err), ShouldBeTrue)
			So(errors.FieldErrors(err, "c1"), ShouldHaveLength, 1)

			ok, err := s.Exists("c9")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("A backup with schema errors is rejected", func() {
			raw := []byte(`{
				"c1": {"id": "c1", "channel": {}, "senderKeyPair": null, "latest_spent_balance": "1"},
				"c2": {"id": "c2"}
			}`)
			_, err := ParseSnapshot(raw)
			So(errors.ErrValidation.Is(err), ShouldBeTrue)
			So(errors.FieldErrors(err, "c1"), ShouldHaveLength, 1)
			So(errors.FieldErrors(err, "c2"), ShouldHaveLength, 1)

			_, err = ParseSnapshot([]byte(`[]`))
			So(errors.ErrValidation.Is(err), ShouldBeTrue)
		})
	})
}
