/*

Package paychan defines the messages of a unidirectional payment channel:
accounts, the channel escrow record, and the payment states exchanged
between sender and receiver outside of the ledger.

Every message has a binary representation, matching what the channel
contract decodes, and a structural JSON representation used by ledger
queries and the local store. Both are derived from the same type through the
codec package and are checked for equivalence when this package is loaded.

The store, signing, ledger, wallet and client packages build the channel
client on top of these types.

*/

package paychan
