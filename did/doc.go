/*
Package did manages self-sovereign Decentralized Identifiers of the wallet.

Manager derives new identifiers through the wallet key agent, keeps their
versioned attributes in the idcache.Cache and reconciles them with the
registration transactions observed on the chain. Each Identity provides
read and write access to the attributes of one identifier and signs data
with its key.

# Reconciliation

Attribute values are versioned by the block height of the registration
transaction that carried them, and the value of the path is the version with
the highest height. Transaction events are applied as they come:

  - Added and Updated events save the value at the event height;
  - Deleted events (chain reorganizations) remove the version at the event
    height, exposing the previous one.

Events are idempotent and can be delivered in any order. Values set locally
are stored at idcache.UnconfirmedHeight until the chain confirms them.

# Notifications

Observers registered for an identifier receive a Notification after each
applied event. Observers are called synchronously in registration order
outside the Manager lock, panics are recovered and logged.
*/
package did
