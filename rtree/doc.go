package rtree

/*
# Why a bulk loaded R-tree

A fragment of a sparse array is written once: its leaf tiles are laid out
in a global order chosen by the writer, and each tile carries a minimum
bounding rectangle over the coordinates it holds. Reads then have to
answer one question over and over: for an arbitrary query rectangle,
which tiles does it touch, and how much of each tile does it cover?

Because the tile set is fixed at write time, there is no reason to pay
for a dynamic spatial index. The tree here is built bottom up in one
pass: the leaf MBRs are packed in tile order, then each level above is
formed by taking consecutive groups of up to fanout children and
emitting their tight union, until a single root remains.

For 6 leaf tiles with fanout 3:

	level 0                  root
	                      /        \
	level 1         u(0,1,2)      u(3,4,5)
	               /   |   \      /   |   \
	level 2       t0  t1   t2    t3  t4   t5

Two properties follow from the consecutive grouping and make the read
side cheap:

 1. A node at level k with index i covers the contiguous leaf interval
    starting at i * fanout^(H-k). When a query contains a node's MBR,
    the whole interval is reported at once, clamped at the ragged right
    edge, without visiting the subtree.
 2. Walking children in index order yields results in ascending leaf
    order, so overlap output is deterministic with no sort step.

Each level is a single packed scalar slice. That keeps the tree cache
friendly, makes deep copies trivial, and means serialization is a
length-prefixed dump of the levels, byte for byte the in-memory layout.

The tree stores no pointers and no per-node metadata; everything is
derived from the dimension count, the fanout and the level sizes. All
coordinate arithmetic is generic over the supported scalar datatypes,
instantiated once per datatype at the public entry points.
*/
