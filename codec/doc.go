/*
Package codec implements the two representations of every protocol message.

The binary representation is Borsh, the layout the payment channel contract
decodes: little-endian fixed-width integers, u32 length-prefixed strings, a u8
tag for options and enum variants, struct fields in declaration order.

The structural representation is JSON, as returned by ledger queries and as
written to the local store. JSON input is validated against a schema before it
is decoded, and integers given as strings, numbers, booleans or typed values
are normalised first.

Both representations are derived from the same Go struct. Fields take part in
the binary layout through a `borsh` tag and in the structural layout through a
`json` tag. Types that need a custom representation implement BorshShaper and
JSONShaper. MustRegister derives both shapes and panics when they disagree, so
that a message type cannot validate in one representation and fail to decode
in the other.
*/
package codec
